package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/wrapup/internal/retry"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID int64
}

// idempotentStore ignores records whose id is already stored.
type idempotentStore struct {
	mu        sync.Mutex
	rows      map[int64]record
	batches   [][]record
	failNext  int
	flushErrs []error
}

func newIdempotentStore() *idempotentStore {
	return &idempotentStore{rows: make(map[int64]record)}
}

func (s *idempotentStore) flush(_ context.Context, batch []record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		err := errors.New("connection reset")
		s.flushErrs = append(s.flushErrs, err)
		return err
	}
	s.batches = append(s.batches, append([]record(nil), batch...))
	for _, r := range batch {
		if _, exists := s.rows[r.ID]; !exists {
			s.rows[r.ID] = r
		}
	}
	return nil
}

func (s *idempotentStore) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, 0, len(s.batches))
	for _, b := range s.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func (s *idempotentStore) storedRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func newTestWriter(store *idempotentStore, threshold int) *Writer[record] {
	return NewWriter(Config{Name: "test", Threshold: threshold}, store.flush, clockwork.NewRealClock())
}

func offer(t *testing.T, w *Writer[record], from, n int) {
	t.Helper()
	for i := from; i < from+n; i++ {
		require.NoError(t, w.Add(context.Background(), record{ID: int64(i)}))
	}
}

func TestWriter_FlushCountMatchesThreshold(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		threshold int
		want      []int
	}{
		{name: "partial last batch", total: 2500, threshold: 1000, want: []int{1000, 1000, 500}},
		{name: "evenly divisible", total: 2000, threshold: 1000, want: []int{1000, 1000}},
		{name: "below threshold", total: 7, threshold: 1000, want: []int{7}},
		{name: "single full batch", total: 3, threshold: 3, want: []int{3}},
		{name: "nothing offered", total: 0, threshold: 10, want: []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newIdempotentStore()
			w := newTestWriter(store, tc.threshold)

			offer(t, w, 0, tc.total)
			stats := w.Close(context.Background())

			assert.Equal(t, tc.want, store.batchSizes())
			assert.Equal(t, len(tc.want), stats.Flushes)
			assert.Equal(t, tc.total, stats.Attempted)
			assert.Equal(t, tc.total, stats.Offered)
			assert.Zero(t, w.Buffered())
		})
	}
}

func TestWriter_ReplayStoresOneRowPerID(t *testing.T) {
	store := newIdempotentStore()
	w := newTestWriter(store, 4)

	offer(t, w, 0, 5)
	offer(t, w, 0, 5)
	stats := w.Close(context.Background())

	assert.Equal(t, 10, stats.Attempted)
	assert.Equal(t, 5, store.storedRows())
}

func TestWriter_FailedBatchIsDroppedAndWritingContinues(t *testing.T) {
	store := newIdempotentStore()
	store.failNext = 1
	w := newTestWriter(store, 2)

	offer(t, w, 0, 5)
	stats := w.Close(context.Background())

	assert.Equal(t, 3, stats.Flushes)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Equal(t, 2, stats.FailedRows)
	assert.Equal(t, 5, stats.Attempted)
	assert.Equal(t, 3, store.storedRows())
}

func TestWriter_RetriesTransientFailure(t *testing.T) {
	store := newIdempotentStore()
	store.failNext = 1
	w := NewWriter(Config{
		Name:      "test",
		Threshold: 2,
		Retry:     retry.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	}, store.flush, clockwork.NewRealClock())

	offer(t, w, 0, 2)
	stats := w.Close(context.Background())

	assert.Zero(t, stats.FailedBatches)
	assert.Len(t, store.flushErrs, 1)
	assert.Equal(t, 2, store.storedRows())
}

func TestWriter_CooldownPausesAfterFullBatch(t *testing.T) {
	store := newIdempotentStore()
	clock := clockwork.NewFakeClock()
	w := NewWriter(Config{Name: "test", Threshold: 2, Cooldown: 100 * time.Millisecond}, store.flush, clock)

	require.NoError(t, w.Add(context.Background(), record{ID: 1}))

	done := make(chan error, 1)
	go func() {
		done <- w.Add(context.Background(), record{ID: 2})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case <-done:
		t.Fatal("Add returned before the cooldown elapsed")
	default:
	}
	assert.Equal(t, []int{2}, store.batchSizes())

	clock.Advance(100 * time.Millisecond)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Add did not return after the cooldown")
	}
}

func TestWriter_CooldownInterruptedByContext(t *testing.T) {
	store := newIdempotentStore()
	clock := clockwork.NewFakeClock()
	w := NewWriter(Config{Name: "test", Threshold: 1, Cooldown: time.Hour}, store.flush, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Add(ctx, record{ID: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, store.batchSizes())
}

func TestWriter_RunFlushesRemainderWhenInputCloses(t *testing.T) {
	store := newIdempotentStore()
	w := newTestWriter(store, 3)

	in := make(chan record, 10)
	for i := 0; i < 7; i++ {
		in <- record{ID: int64(i)}
	}
	close(in)

	stats := w.Run(context.Background(), in)

	assert.Equal(t, []int{3, 3, 1}, store.batchSizes())
	assert.Equal(t, 7, stats.Attempted)
}

func TestWriter_RunFlushesRemainderOnCancellation(t *testing.T) {
	store := newIdempotentStore()
	w := newTestWriter(store, 100)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan record)
	result := make(chan Stats, 1)
	go func() {
		result <- w.Run(ctx, in)
	}()

	in <- record{ID: 1}
	in <- record{ID: 2}
	cancel()

	select {
	case stats := <-result:
		assert.Equal(t, 2, stats.Attempted)
		assert.Equal(t, []int{2}, store.batchSizes())
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestWriter_RunFlushesOnInterval(t *testing.T) {
	store := newIdempotentStore()
	clock := clockwork.NewFakeClock()
	w := NewWriter(Config{Name: "test", Threshold: 100, FlushInterval: 5 * time.Second}, store.flush, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan record)
	result := make(chan Stats, 1)
	go func() {
		result <- w.Run(ctx, in)
	}()

	in <- record{ID: 1}
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	clock.Advance(5 * time.Second)

	require.Eventually(t, func() bool {
		return len(store.batchSizes()) == 1
	}, time.Second, 5*time.Millisecond)

	close(in)
	stats := <-result
	assert.Equal(t, 1, stats.Flushes)
}
