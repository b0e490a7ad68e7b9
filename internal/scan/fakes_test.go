package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/repository"
)

type fakeHistory struct {
	mu          sync.Mutex
	channels    []discord.Channel
	listErr     error
	messages    map[string][]discord.Message
	failures    map[string]error
	malformed   map[int64]bool
	blockPaging map[string]bool
	gate        chan struct{}
	calls       map[string]int
	inflight    int
	maxInflight int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		messages:    make(map[string][]discord.Message),
		failures:    make(map[string]error),
		malformed:   make(map[int64]bool),
		blockPaging: make(map[string]bool),
		calls:       make(map[string]int),
	}
}

// addChannel registers a channel whose n messages are spaced step apart,
// newest first, starting at newest.
func (f *fakeHistory) addChannel(id, name string, canRead bool, n int, newest time.Time, step time.Duration) {
	base, _ := strconv.ParseInt(id, 10, 64)
	msgs := make([]discord.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, discord.Message{
			ID:        base*1_000_000 + int64(n-i),
			AuthorID:  int64(i % 7),
			ChannelID: base,
			Timestamp: newest.Add(-time.Duration(i) * step),
			Content:   fmt.Sprintf("message %d", i),
		})
	}
	f.channels = append(f.channels, discord.Channel{ID: id, Name: name, CanRead: canRead})
	f.messages[id] = msgs
}

func (f *fakeHistory) ListTextChannels(_ context.Context, _ string) ([]discord.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeHistory) FetchMessages(ctx context.Context, channelID, beforeID string, limit int) (discord.MessagePage, error) {
	f.mu.Lock()
	f.calls[channelID]++
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	gate := f.gate
	block := f.blockPaging[channelID] && beforeID != ""
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return discord.MessagePage{}, ctx.Err()
		}
	}
	if block {
		<-ctx.Done()
		return discord.MessagePage{}, fmt.Errorf("fetch page: %w", ctx.Err())
	}
	if err := f.failures[channelID]; err != nil {
		return discord.MessagePage{}, err
	}

	msgs := f.messages[channelID]
	start := 0
	if beforeID != "" {
		before, err := strconv.ParseInt(beforeID, 10, 64)
		if err != nil {
			return discord.MessagePage{}, err
		}
		start = len(msgs)
		for i, m := range msgs {
			if m.ID < before {
				start = i
				break
			}
		}
	}
	end := min(start+limit, len(msgs))
	page := discord.MessagePage{Fetched: end - start}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs[start:end] {
		page.OldestID = strconv.FormatInt(m.ID, 10)
		if f.malformed[m.ID] {
			continue
		}
		page.Messages = append(page.Messages, m)
	}
	return page, nil
}

func (f *fakeHistory) callsFor(channelID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[channelID]
}

func (f *fakeHistory) concurrency() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight, f.maxInflight
}

type fakeMessageRepo struct {
	mu      sync.Mutex
	rows    map[int64]repository.MessageRecord
	batches []int
	err     error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{rows: make(map[int64]repository.MessageRecord)}
}

func (r *fakeMessageRepo) InsertMessages(_ context.Context, records []repository.MessageRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.batches = append(r.batches, len(records))
	inserted := 0
	for _, rec := range records {
		if _, exists := r.rows[rec.ID]; exists {
			continue
		}
		r.rows[rec.ID] = rec
		inserted++
	}
	return inserted, nil
}

func (r *fakeMessageRepo) CountMessages(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.rows)), nil
}

func (r *fakeMessageRepo) batchSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.batches...)
}

var errFetch = errors.New("missing access")
