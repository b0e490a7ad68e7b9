package scan

import (
	"github.com/foxseedlab/wrapup/internal/discord"
	"github.com/foxseedlab/wrapup/internal/emoji"
)

const (
	NoSource = "N/A"
	NoEmoji  = "None"
)

type Count struct {
	Key   string
	Count int64
}

// counter keeps first-seen order so ties resolve to the earliest key.
type counter struct {
	counts map[string]int64
	order  []string
}

func newCounter() counter {
	return counter{counts: make(map[string]int64)}
}

func (c *counter) add(key string, n int64) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

func (c *counter) top() (string, int64, bool) {
	var (
		best  string
		count int64
		found bool
	)
	for _, key := range c.order {
		if n := c.counts[key]; !found || n > count {
			best, count, found = key, n, true
		}
	}
	return best, count, found
}

func (c *counter) entries() []Count {
	out := make([]Count, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, Count{Key: key, Count: c.counts[key]})
	}
	return out
}

// Summary aggregates one scan. It is not safe for concurrent mutation;
// shard per goroutine and Merge instead.
type Summary struct {
	MessageCount int64

	authors  map[int64]struct{}
	activity counter
	emoji    counter
}

func NewSummary() *Summary {
	return &Summary{
		authors:  make(map[int64]struct{}),
		activity: newCounter(),
		emoji:    newCounter(),
	}
}

func (s *Summary) Add(msg discord.Message, emojiTokens []string) {
	s.MessageCount++
	s.authors[msg.AuthorID] = struct{}{}
	s.activity.add(msg.ChannelName, 1)
	for _, token := range emojiTokens {
		s.emoji.add(token, 1)
	}
}

// Merge folds other into s. Counts add and authors union, so the result does
// not depend on merge order apart from tie-breaking between equal counts.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}
	s.MessageCount += other.MessageCount
	for id := range other.authors {
		s.authors[id] = struct{}{}
	}
	for _, c := range other.activity.entries() {
		s.activity.add(c.Key, c.Count)
	}
	for _, c := range other.emoji.entries() {
		s.emoji.add(c.Key, c.Count)
	}
}

func (s *Summary) UniqueAuthors() int {
	return len(s.authors)
}

// ActivityBySource lists per-channel counts in first-seen order.
func (s *Summary) ActivityBySource() []Count {
	return s.activity.entries()
}

func (s *Summary) SourceCount(name string) int64 {
	return s.activity.counts[name]
}

func (s *Summary) EmojiCounts() []Count {
	return s.emoji.entries()
}

func (s *Summary) EmojiCount(token string) int64 {
	return s.emoji.counts[token]
}

func (s *Summary) SourcesSeen() int {
	return len(s.activity.order)
}

func (s *Summary) TopSource() string {
	if name, _, ok := s.activity.top(); ok {
		return name
	}
	return NoSource
}

func (s *Summary) TopEmoji() (string, int64) {
	if token, n, ok := s.emoji.top(); ok {
		return token, n
	}
	return NoEmoji, 0
}

// Accumulator feeds messages into a Summary, extracting emoji on the way.
type Accumulator struct {
	extractor *emoji.Extractor
	summary   *Summary
}

func NewAccumulator(extractor *emoji.Extractor) *Accumulator {
	if extractor == nil {
		extractor = emoji.NewExtractor(nil)
	}
	return &Accumulator{extractor: extractor, summary: NewSummary()}
}

func (a *Accumulator) Add(msg discord.Message) {
	a.summary.Add(msg, a.extractor.Extract(msg.Content))
}

func (a *Accumulator) Summary() *Summary {
	return a.summary
}
