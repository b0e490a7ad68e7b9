// Package emoji turns raw message text into canonical emoji tokens.
package emoji

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

const variationSelector16 = "\uFE0F"

//go:embed emojis.json
var bundledDataset []byte

// Lookup maps unicode emoji sequences to their canonical names. It is
// immutable once built and safe for concurrent reads.
type Lookup struct {
	names    map[string]string
	maxRunes int
}

// NewLookup builds a lookup from sequence -> names, taking the first name of
// each entry as canonical. Entries without names are skipped.
func NewLookup(dataset map[string][]string) *Lookup {
	l := &Lookup{names: make(map[string]string, len(dataset)*2)}
	for seq, names := range dataset {
		if seq == "" || len(names) == 0 || names[0] == "" {
			continue
		}
		l.add(seq, names[0])
	}
	// Text often omits VS16, so accept the bare form unless it names something else.
	for seq, name := range l.snapshot() {
		bare := strings.ReplaceAll(seq, variationSelector16, "")
		if bare == seq || bare == "" {
			continue
		}
		if _, exists := l.names[bare]; !exists {
			l.add(bare, name)
		}
	}
	return l
}

// EmptyLookup resolves nothing.
func EmptyLookup() *Lookup {
	return &Lookup{names: map[string]string{}}
}

func (l *Lookup) add(seq, name string) {
	l.names[seq] = name
	if n := utf8.RuneCountInString(seq); n > l.maxRunes {
		l.maxRunes = n
	}
}

func (l *Lookup) snapshot() map[string]string {
	out := make(map[string]string, len(l.names))
	for k, v := range l.names {
		out[k] = v
	}
	return out
}

func (l *Lookup) Name(seq string) (string, bool) {
	if l == nil {
		return "", false
	}
	name, ok := l.names[seq]
	return name, ok
}

func (l *Lookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.names)
}

// LoadLookup decodes a JSON object of sequence -> list of names.
func LoadLookup(r io.Reader) (*Lookup, error) {
	var raw map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode emoji dataset: %w", err)
	}
	return NewLookup(raw), nil
}

// LoadBundledLookup loads the dataset compiled into the binary.
func LoadBundledLookup() (*Lookup, error) {
	return LoadLookup(bytes.NewReader(bundledDataset))
}

// Load reads the dataset at path, or the bundled one when path is empty. A
// dataset that cannot be loaded is logged and replaced by an empty lookup so
// custom tags keep working without unicode names.
func Load(path string) *Lookup {
	started := time.Now()
	var (
		lookup *Lookup
		err    error
	)
	if path == "" {
		lookup, err = LoadBundledLookup()
	} else {
		lookup, err = loadFile(path)
	}
	if err != nil {
		slog.Error("failed to load emoji dataset; unicode emoji will not be resolved", "error", err, "path", path)
		return EmptyLookup()
	}
	slog.Info("emoji dataset loaded", "entries", lookup.Len(), "elapsed", time.Since(started), "path", path)
	return lookup
}

func loadFile(path string) (*Lookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadLookup(f)
}
