package repository

import (
	"context"
	"errors"

	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertMessageSQL = `INSERT INTO messages
	(message_id, author_id, channel_id, timestamp, word_count, char_count, has_attachment, is_reply, hour_of_day)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (message_id) DO NOTHING`

var emojiUsageColumns = []string{"message_id", "emoji_id", "user_id", "timestamp"}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) InsertMessages(ctx context.Context, records []repository.MessageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertMessageSQL,
			rec.ID, rec.AuthorID, rec.ChannelID, rec.Timestamp,
			rec.WordCount, rec.CharCount, rec.HasAttachment, rec.IsReply, rec.HourOfDay)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *PostgresRepository) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

func (r *PostgresRepository) InsertEmojiUsages(ctx context.Context, usages []repository.EmojiUsage) error {
	if len(usages) == 0 {
		return nil
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"emoji_usage"}, emojiUsageColumns,
		pgx.CopyFromSlice(len(usages), func(i int) ([]any, error) {
			u := usages[i]
			return []any{u.MessageID, u.Emoji, u.UserID, u.Timestamp}, nil
		}))
	return err
}

func (r *PostgresRepository) DeleteEmojiUsagesByMessage(ctx context.Context, messageID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM emoji_usage WHERE message_id = $1`, messageID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) CountEmojiUsagesByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emoji_usage WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) TopEmojisByUser(ctx context.Context, userID int64, limit int) ([]repository.EmojiCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT emoji_id, COUNT(*) AS uses
		 FROM emoji_usage WHERE user_id = $1
		 GROUP BY emoji_id
		 ORDER BY uses DESC, emoji_id ASC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.EmojiCount, error) {
		var c repository.EmojiCount
		err := row.Scan(&c.Emoji, &c.Count)
		return c, err
	})
}

func (r *PostgresRepository) InsertVoiceSession(ctx context.Context, s repository.VoiceSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO voice_sessions (user_id, channel_id, start_time, end_time, duration_ms)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.UserID, s.ChannelID, s.StartTime, s.EndTime, s.Duration.Milliseconds())
	return err
}

func (r *PostgresRepository) InsertBump(ctx context.Context, b repository.Bump) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bumps (user_id, bump_time, timestamp) VALUES ($1, $2, $3)`,
		b.UserID, b.BumpTime, b.Timestamp)
	return err
}

// IsPermanentError reports whether err comes from data the database rejected,
// where sending the same batch again cannot succeed.
func IsPermanentError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	switch pgErr.Code[:2] {
	case "22", "23", "42":
		return true
	}
	return false
}
