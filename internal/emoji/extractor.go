package emoji

import (
	"regexp"
)

var customEmojiPattern = regexp.MustCompile(`<a?:[a-zA-Z0-9_]+:[0-9]+>`)

type Extractor struct {
	lookup *Lookup
}

func NewExtractor(lookup *Lookup) *Extractor {
	if lookup == nil {
		lookup = EmptyLookup()
	}
	return &Extractor{lookup: lookup}
}

// Extract returns the custom emoji tags in text, verbatim and in order,
// followed by the canonical names of the unicode emoji left after the tags
// are removed. Unicode emoji missing from the lookup are dropped.
func (e *Extractor) Extract(text string) []string {
	var tokens []string
	residual := customEmojiPattern.ReplaceAllStringFunc(text, func(tag string) string {
		tokens = append(tokens, tag)
		return " "
	})
	for _, run := range emojiRuns(residual) {
		tokens = e.resolveRun(run, tokens)
	}
	return tokens
}

// resolveRun matches the longest known sequence at each position of run.
func (e *Extractor) resolveRun(run []rune, tokens []string) []string {
	for i := 0; i < len(run); {
		matched := 0
		for n := min(e.lookup.maxRunes, len(run)-i); n > 0; n-- {
			if name, ok := e.lookup.Name(string(run[i : i+n])); ok {
				tokens = append(tokens, name)
				matched = n
				break
			}
		}
		if matched == 0 {
			matched = 1
		}
		i += matched
	}
	return tokens
}

func emojiRuns(s string) [][]rune {
	var (
		runs    [][]rune
		current []rune
	)
	rs := []rune(s)
	for i, r := range rs {
		if isEmojiRune(r) || isKeycapBase(rs, i) {
			current = append(current, r)
			continue
		}
		if len(current) > 0 {
			runs = append(runs, current)
			current = nil
		}
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

// isKeycapBase reports whether rs[i] is a digit, '#' or '*' that starts a
// keycap sequence, with or without VS16 before the enclosing keycap.
func isKeycapBase(rs []rune, i int) bool {
	r := rs[i]
	if !(r >= '0' && r <= '9') && r != '#' && r != '*' {
		return false
	}
	next := i + 1
	if next < len(rs) && rs[next] == 0xFE0F {
		next++
	}
	return next < len(rs) && rs[next] == 0x20E3
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2300 && r <= 0x23FF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0x2190 && r <= 0x21FF:
		return true
	case r >= 0x25A0 && r <= 0x25FF:
		return true
	case r >= 0xE0020 && r <= 0xE007F:
		return true
	}
	switch r {
	case 0x00A9, 0x00AE, 0x203C, 0x2049, 0x2122, 0x2139, 0x24C2,
		0x2934, 0x2935, 0x3030, 0x303D, 0x3297, 0x3299,
		0x200D, 0xFE0F, 0x20E3:
		return true
	}
	return false
}
