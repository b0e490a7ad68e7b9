// Package bump records server-listing bump notices posted in chat.
package bump

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/metrics"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/jonboulle/clockwork"
)

var (
	noisePattern  = regexp.MustCompile(`[^a-zA-Z0-9.\s]`)
	noticePattern = regexp.MustCompile(`(.+)\s+bumped in just\s+([0-9.]+)\s*s`)
)

type Notice struct {
	Name  string
	Speed float64
}

// Parse recognizes "<name> bumped in just <seconds>s" after dropping every
// character other than ASCII letters, digits, periods and whitespace. An
// unparsable speed is reported as 0.
func Parse(text string) (Notice, bool) {
	clean := strings.TrimSpace(noisePattern.ReplaceAllString(text, ""))
	m := noticePattern.FindStringSubmatch(clean)
	if m == nil {
		return Notice{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return Notice{}, false
	}
	speed, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		speed = 0
	}
	return Notice{Name: name, Speed: speed}, true
}

type Detector struct {
	members discord.MemberDirectory
	repo    repository.BumpRepository
	clock   clockwork.Clock
}

func NewDetector(members discord.MemberDirectory, repo repository.BumpRepository, clock clockwork.Clock) *Detector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Detector{members: members, repo: repo, clock: clock}
}

// Handle reports whether msg is a bump notice. A notice is stored only when
// the name resolves to exactly one member; anything else is dropped.
func (d *Detector) Handle(ctx context.Context, msg discord.Message) bool {
	notice, ok := Parse(msg.Content)
	if !ok {
		return false
	}

	members, err := d.members.FindMembersByDisplayName(ctx, msg.GuildID, notice.Name)
	if err != nil {
		metrics.BumpsTotal.WithLabelValues("error").Inc()
		slog.Error("failed to resolve bump member", "error", err, "guild_id", msg.GuildID, "name", notice.Name)
		return true
	}
	switch len(members) {
	case 0:
		metrics.BumpsTotal.WithLabelValues("unresolved").Inc()
		slog.Debug("bump notice names no member", "name", notice.Name)
		return true
	case 1:
	default:
		metrics.BumpsTotal.WithLabelValues("ambiguous").Inc()
		slog.Debug("bump notice matches several members", "name", notice.Name, "matches", len(members))
		return true
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = d.clock.Now()
	}
	record := repository.Bump{
		UserID:    members[0].UserID,
		BumpTime:  notice.Speed,
		Timestamp: at,
	}
	if err := d.repo.InsertBump(ctx, record); err != nil {
		metrics.BumpsTotal.WithLabelValues("error").Inc()
		slog.Error("failed to save bump", "error", err, "user_id", record.UserID)
		return true
	}
	metrics.BumpsTotal.WithLabelValues("saved").Inc()
	slog.Info("bump recorded", "user_id", record.UserID, "name", notice.Name, "speed", notice.Speed)
	return true
}
