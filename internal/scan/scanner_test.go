package scan

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/foxseedlab/wrapup/internal/batch"
	"github.com/foxseedlab/wrapup/internal/emoji"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(h *fakeHistory, repo *fakeMessageRepo) *Scanner {
	return NewScanner(h, repo, emoji.NewExtractor(nil),
		TraversalConfig{PagesPerSecond: 10_000},
		batch.Config{Threshold: batch.DefaultThreshold},
		nil)
}

func TestScanner_Scan(t *testing.T) {
	h := newFakeHistory()
	h.addChannel("1", "general", true, 1500, testCutoff.Add(30*24*time.Hour), time.Minute)
	for i := 2; i <= 6; i++ {
		id := strconv.Itoa(i)
		h.addChannel(id, "locked-"+id, false, 20, testCutoff.Add(time.Hour), time.Minute)
	}
	repo := newFakeMessageRepo()

	res, err := newTestScanner(h, repo).Scan(context.Background(), "guild", testCutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(1500), res.Summary.MessageCount)
	assert.Equal(t, "general", res.Summary.TopSource())
	assert.Equal(t, 7, res.Summary.UniqueAuthors())
	assert.Equal(t, 1, res.ChannelsScanned)
	assert.Equal(t, 5, res.ChannelsSkipped)
	assert.Equal(t, 16, res.Pages)
	assert.Equal(t, []int{1000, 500}, repo.batchSizes())
	assert.Equal(t, 2, res.Writes.Flushes)
	assert.Equal(t, 1500, res.Stored)
	assert.Equal(t, int64(1500), res.DatabaseTotal)
	assert.False(t, res.Partial())
	assert.NotEmpty(t, res.ScanID)
	assert.Equal(t, testCutoff, res.Cutoff)
}

func TestScanner_ReplayStoresNothingNew(t *testing.T) {
	h := newFakeHistory()
	h.addChannel("1", "general", true, 320, testCutoff.Add(24*time.Hour), time.Minute)
	repo := newFakeMessageRepo()
	scanner := newTestScanner(h, repo)

	first, err := scanner.Scan(context.Background(), "guild", testCutoff)
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background(), "guild", testCutoff)
	require.NoError(t, err)

	assert.Equal(t, 320, first.Stored)
	assert.Equal(t, 0, second.Stored)
	assert.Equal(t, first.Summary.MessageCount, second.Summary.MessageCount)
	assert.Equal(t, int64(320), second.DatabaseTotal)
	assert.NotEqual(t, first.ScanID, second.ScanID)
}

func TestScanner_NoMessagesAfterCutoff(t *testing.T) {
	h := newFakeHistory()
	h.addChannel("1", "general", true, 30, testCutoff, time.Minute)
	repo := newFakeMessageRepo()

	res, err := newTestScanner(h, repo).Scan(context.Background(), "guild", testCutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.Summary.MessageCount)
	assert.Equal(t, NoSource, res.Summary.TopSource())
	token, _ := res.Summary.TopEmoji()
	assert.Equal(t, NoEmoji, token)
	assert.Empty(t, repo.batchSizes())
}

func TestScanner_PartialOnChannelFailure(t *testing.T) {
	h := newFakeHistory()
	h.addChannel("1", "general", true, 12, testCutoff.Add(time.Hour), time.Minute)
	h.addChannel("2", "broken", true, 12, testCutoff.Add(time.Hour), time.Minute)
	h.failures["2"] = errFetch
	repo := newFakeMessageRepo()

	res, err := newTestScanner(h, repo).Scan(context.Background(), "guild", testCutoff)
	require.NoError(t, err)

	assert.True(t, res.Partial())
	assert.False(t, res.Interrupted)
	assert.Equal(t, int64(12), res.Summary.MessageCount)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "broken", res.Warnings[0].ChannelName)
}

func TestScanner_StoreFailureKeepsAggregating(t *testing.T) {
	h := newFakeHistory()
	h.addChannel("1", "general", true, 50, testCutoff.Add(time.Hour), time.Minute)
	repo := newFakeMessageRepo()
	repo.err = errors.New("database is down")

	res, err := newTestScanner(h, repo).Scan(context.Background(), "guild", testCutoff)
	require.NoError(t, err)

	assert.Equal(t, int64(50), res.Summary.MessageCount)
	assert.Equal(t, 0, res.Stored)
	assert.Equal(t, 1, res.Writes.FailedBatches)
	assert.Equal(t, 50, res.Writes.FailedRows)
	assert.Equal(t, int64(0), res.DatabaseTotal)
}

func TestScanner_CancelFlushesReceivedMessages(t *testing.T) {
	h := newFakeHistory()
	h.addChannel("1", "general", true, 150, testCutoff.Add(24*time.Hour), time.Minute)
	h.blockPaging["1"] = true
	repo := newFakeMessageRepo()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for h.callsFor("1") < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	res, err := newTestScanner(h, repo).Scan(ctx, "guild", testCutoff)
	require.NoError(t, err)

	assert.True(t, res.Interrupted)
	assert.True(t, res.Partial())
	assert.Equal(t, int64(100), res.Summary.MessageCount)
	assert.Equal(t, 100, res.Stored)
	assert.Equal(t, []int{100}, repo.batchSizes())
}

func TestScanner_ListChannelsError(t *testing.T) {
	h := newFakeHistory()
	h.listErr = errors.New("unknown guild")

	_, err := newTestScanner(h, newFakeMessageRepo()).Scan(context.Background(), "guild", testCutoff)
	assert.Error(t, err)
}

func TestScanner_ZeroCutoff(t *testing.T) {
	_, err := newTestScanner(newFakeHistory(), newFakeMessageRepo()).Scan(context.Background(), "guild", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidCutoff)
}
