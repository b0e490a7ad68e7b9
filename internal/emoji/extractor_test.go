package emoji

import (
	"reflect"
	"strings"
	"sync"
	"testing"
)

func newTestExtractor() *Extractor {
	return NewExtractor(NewLookup(map[string][]string{
		"🔥":    {"fire"},
		"👍":    {"+1", "thumbsup"},
		"👍🏽":   {"+1_tone3"},
		"❤️":   {"heart"},
		"❤️‍🔥": {"heart_on_fire"},
		"😆":    {"laughing", "satisfied"},
		"🇯🇵":   {"jp"},
		"🙈":    {},
	}))
}

func TestExtract_CustomTagAndUnicode(t *testing.T) {
	got := newTestExtractor().Extract("gg <:kek:123456789> 🔥")
	want := []string{"<:kek:123456789>", "fire"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_AnimatedTagKeptVerbatim(t *testing.T) {
	got := newTestExtractor().Extract("<a:party_parrot:42><:kek:7>")
	want := []string{"<a:party_parrot:42>", "<:kek:7>"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_MalformedTagIsNotCustom(t *testing.T) {
	got := newTestExtractor().Extract("<:kek:> <kek:12> :kek:")
	if len(got) != 0 {
		t.Fatalf("expected no tokens, got %q", got)
	}
}

func TestExtract_DropsUnresolvedCodePoints(t *testing.T) {
	got := newTestExtractor().Extract("🛸 ok 🔥 🦖")
	want := []string{"fire"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_RepeatedEmojiYieldRepeatedTokens(t *testing.T) {
	got := newTestExtractor().Extract("🔥🔥 and 🔥")
	want := []string{"fire", "fire", "fire"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_PrefersLongestSequence(t *testing.T) {
	e := newTestExtractor()
	if got := e.Extract("👍🏽"); !reflect.DeepEqual(got, []string{"+1_tone3"}) {
		t.Fatalf("skin tone sequence: got %q", got)
	}
	// Unknown tone modifier: base resolves, modifier is dropped.
	if got := e.Extract("👍🏼"); !reflect.DeepEqual(got, []string{"+1"}) {
		t.Fatalf("unknown tone: got %q", got)
	}
	if got := e.Extract("❤️‍🔥"); !reflect.DeepEqual(got, []string{"heart_on_fire"}) {
		t.Fatalf("zwj sequence: got %q", got)
	}
	if got := e.Extract("🇯🇵"); !reflect.DeepEqual(got, []string{"jp"}) {
		t.Fatalf("flag: got %q", got)
	}
}

func TestExtract_MatchesWithoutVariationSelector(t *testing.T) {
	got := newTestExtractor().Extract("I ❤ Go")
	if !reflect.DeepEqual(got, []string{"heart"}) {
		t.Fatalf("got %q", got)
	}
}

func TestExtract_FirstNameIsCanonical(t *testing.T) {
	got := newTestExtractor().Extract("😆")
	if !reflect.DeepEqual(got, []string{"laughing"}) {
		t.Fatalf("got %q", got)
	}
}

func TestExtract_EntryWithoutNamesIsSkipped(t *testing.T) {
	if got := newTestExtractor().Extract("🙈"); len(got) != 0 {
		t.Fatalf("expected no tokens, got %q", got)
	}
}

func TestExtract_EmptyLookupKeepsCustomTags(t *testing.T) {
	got := NewExtractor(nil).Extract("<:kek:1> 🔥")
	want := []string{"<:kek:1>"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_PlainText(t *testing.T) {
	if got := newTestExtractor().Extract("no emoji here: <3 :) 12.5%"); len(got) != 0 {
		t.Fatalf("expected no tokens, got %q", got)
	}
}

func TestExtract_ConcurrentReads(t *testing.T) {
	e := newTestExtractor()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := e.Extract("<:a:1>🔥👍🏽"); len(got) != 3 {
					t.Errorf("unexpected tokens: %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestLoadLookup_InvalidJSON(t *testing.T) {
	if _, err := LoadLookup(strings.NewReader(`{"🔥": "fire"`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoad_MissingFileDegradesToEmpty(t *testing.T) {
	lookup := Load("/nonexistent/emojis.json")
	if lookup == nil {
		t.Fatal("expected non-nil lookup")
	}
	if lookup.Len() != 0 {
		t.Fatalf("expected empty lookup, got %d entries", lookup.Len())
	}
}

func TestLoad_Bundled(t *testing.T) {
	lookup := Load("")
	if lookup.Len() == 0 {
		t.Fatal("expected bundled dataset to have entries")
	}
	got := NewExtractor(lookup).Extract("🔥 <:kek:1> 😂")
	want := []string{"<:kek:1>", "fire", "joy"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_SymbolsOutsidePictographBlocks(t *testing.T) {
	e := NewExtractor(NewLookup(map[string][]string{
		"©️":  {"copyright"},
		"‼️":  {"bangbang"},
		"™️":  {"tm"},
		"↩️":  {"leftwards_arrow_with_hook"},
		"▶️":  {"arrow_forward"},
		"〰️":  {"wavy_dash"},
		"㊙️":  {"secret"},
		"1️⃣": {"one"},
		"#️⃣": {"hash"},
	}))
	got := e.Extract("© ‼️ ™ ↩️ ▶ 〰️ ㊙️ 1️⃣ #⃣")
	want := []string{"copyright", "bangbang", "tm", "leftwards_arrow_with_hook", "arrow_forward", "wavy_dash", "secret", "one", "hash"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtract_PlainDigitsAreNotKeycaps(t *testing.T) {
	e := NewExtractor(NewLookup(map[string][]string{"1️⃣": {"one"}}))
	if got := e.Extract("room 101 at 9#*"); len(got) != 0 {
		t.Fatalf("expected no tokens, got %q", got)
	}
}

func TestLoad_BundledCoversSymbolsTonesAndFlags(t *testing.T) {
	got := NewExtractor(Load("")).Extract("©️ 3️⃣ 👋🏿 🇫🇷 ↔️")
	want := []string{"copyright_sign", "three", "wave_tone5", "fr", "left_right_arrow"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}
