// Package presence turns voice state transitions into voice sessions.
package presence

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/metrics"
	"github.com/foxseedlab/wrapup/internal/repository"
	"github.com/jonboulle/clockwork"
)

// MinSessionDuration is the shortest stay that is recorded. Shorter
// sessions are discarded as noise.
const MinSessionDuration = 5000 * time.Millisecond

type presenceState struct {
	channelID string
	joinedAt  time.Time
}

// Tracker remembers when each user entered their current voice channel.
// Handle is safe for concurrent use, but transitions for one user must be
// delivered in gateway order.
type Tracker struct {
	sink  repository.VoiceSessionRepository
	clock clockwork.Clock

	mu      sync.Mutex
	present map[int64]presenceState
}

func NewTracker(sink repository.VoiceSessionRepository, clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		sink:    sink,
		clock:   clock,
		present: make(map[int64]presenceState),
	}
}

// Seed records the voice occupants reported at guild ready. Users already
// tracked in the same channel keep their join time; everyone else is
// present since now, so sessions in progress at startup are undercounted.
// Tracked users missing from participants left while the gateway was
// away and are forgotten without a session.
func (t *Tracker) Seed(participants []discord.VoiceParticipant) {
	now := t.clock.Now()
	seeded, kept := 0, 0
	t.mu.Lock()
	current := make(map[int64]presenceState, len(participants))
	for _, p := range participants {
		if p.IsBot || p.ChannelID == "" {
			continue
		}
		if prev, ok := t.present[p.UserID]; ok && prev.channelID == p.ChannelID {
			current[p.UserID] = prev
			kept++
			continue
		}
		current[p.UserID] = presenceState{channelID: p.ChannelID, joinedAt: now}
		seeded++
	}
	dropped := 0
	for userID := range t.present {
		if _, ok := current[userID]; !ok {
			dropped++
		}
	}
	t.present = current
	tracked := len(t.present)
	t.mu.Unlock()
	metrics.PresenceTracked.Set(float64(tracked))
	slog.Info("voice presence seeded", "seeded", seeded, "kept", kept, "dropped", dropped, "tracked", tracked)
}

// Handle applies one voice transition. A leave or move closes the open
// session; a join or move opens a new one.
func (t *Tracker) Handle(ctx context.Context, ev discord.VoiceStateEvent) {
	if ev.UserIsBot || ev.BeforeChannelID == ev.AfterChannelID {
		return
	}
	now := t.clock.Now()

	var (
		closed presenceState
		had    bool
	)
	t.mu.Lock()
	if ev.BeforeChannelID != "" {
		closed, had = t.present[ev.UserID]
		delete(t.present, ev.UserID)
	}
	if ev.AfterChannelID != "" {
		t.present[ev.UserID] = presenceState{channelID: ev.AfterChannelID, joinedAt: now}
	}
	tracked := len(t.present)
	t.mu.Unlock()
	metrics.PresenceTracked.Set(float64(tracked))

	if ev.BeforeChannelID == "" {
		return
	}
	if !had {
		slog.Debug("voice leave without tracked join", "user_id", ev.UserID, "channel_id", ev.BeforeChannelID)
		return
	}
	t.closeSession(ctx, ev.UserID, ev.BeforeChannelID, closed, now)
}

func (t *Tracker) closeSession(ctx context.Context, userID int64, leftChannelID string, state presenceState, now time.Time) {
	duration := now.Sub(state.joinedAt)
	if duration < MinSessionDuration {
		metrics.VoiceSessionsTotal.WithLabelValues("discarded").Inc()
		slog.Debug("discarding short voice session", "user_id", userID, "channel_id", leftChannelID, "duration", duration)
		return
	}

	channelID, err := strconv.ParseInt(leftChannelID, 10, 64)
	if err != nil {
		metrics.VoiceSessionsTotal.WithLabelValues("error").Inc()
		slog.Error("invalid voice channel id", "error", err, "channel_id", leftChannelID)
		return
	}
	session := repository.VoiceSession{
		UserID:    userID,
		ChannelID: channelID,
		StartTime: state.joinedAt,
		EndTime:   now,
		Duration:  duration,
	}
	if err := t.sink.InsertVoiceSession(ctx, session); err != nil {
		metrics.VoiceSessionsTotal.WithLabelValues("error").Inc()
		slog.Error("failed to save voice session", "error", err, "user_id", userID, "channel_id", leftChannelID, "duration", duration)
		return
	}
	metrics.VoiceSessionsTotal.WithLabelValues("saved").Inc()
	slog.Info("voice session saved", "user_id", userID, "channel_id", leftChannelID, "duration", duration)
}

// JoinedAt reports when userID entered their current channel.
func (t *Tracker) JoinedAt(userID int64) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.present[userID]
	return state.joinedAt, ok
}

func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.present)
}
