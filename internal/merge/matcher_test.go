package merge

import (
	"strings"
	"testing"
	"unicode/utf8"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/priority"
)

func newTestMatcher() *Matcher {
	cfg := config.MatcherConfig{
		Stopwords: []string{"the", "and", "for", "in", "of", "to", "a", "an", "is", "with"},
		MinTokens: 2,
		Threshold: 0.5,
	}
	taxonomy := config.TaxonomyConfig{
		Categories: []config.Category{
			{Key: "streams", Name: "Streams", Tag: "streams", Aliases: []string{"Streams"}},
		},
	}
	return NewMatcher(cfg, taxonomy, nil)
}

func TestMatcherIdentityMatchPromotes(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	base := []domain.Entry{{
		Title:       "Old title",
		Description: "short",
		Links:       []domain.Link{pull("elastic/kibana", 123)},
	}}
	items := []priority.Item{{
		Order:       1,
		Name:        "Streams general availability",
		KeyMessages: "A much longer richer description of the feature",
		Links:       []domain.Link{pull("elastic/kibana", 123)},
	}}

	out := m.Apply(base, items)
	if len(out) != 1 {
		t.Fatalf("identity match must not add entries: %d", len(out))
	}
	e := out[0]
	if !e.Priority || e.PriorityRank != 1 {
		t.Errorf("not promoted: %+v", e)
	}
	if e.Title != "Streams general availability" {
		t.Errorf("title not overwritten: %q", e.Title)
	}
	if e.Description != "A much longer richer description of the feature" {
		t.Errorf("longer description not adopted: %q", e.Description)
	}
}

func TestMatcherDescriptionUpgradeRequiresStrictlyLonger(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	longDesc := "An existing description that is already longer than the key messages"
	base := []domain.Entry{{
		Description: longDesc,
		Links:       []domain.Link{pull("elastic/kibana", 5)},
	}}
	items := []priority.Item{{
		Order:       1,
		Name:        "Some feature",
		KeyMessages: "short",
		Links:       []domain.Link{pull("elastic/kibana", 5)},
	}}

	out := m.Apply(base, items)
	if out[0].Description != longDesc {
		t.Errorf("shorter key messages must not replace description: %q", out[0].Description)
	}
}

func TestMatcherIdentityUniquenessAfterMatch(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	base := []domain.Entry{{
		Description: "base entry",
		Links:       []domain.Link{pull("elastic/kibana", 9)},
	}}
	items := []priority.Item{{
		Order: 1,
		Name:  "Matching highlight",
		Links: []domain.Link{pull("elastic/kibana", 9)},
	}}

	out := m.Apply(base, items)
	counts := map[domain.Identity]int{}
	for _, e := range out {
		for _, id := range e.Identities() {
			counts[id]++
		}
	}
	for id, n := range counts {
		if n > 1 {
			t.Errorf("identity %v appears %d times after matching", id, n)
		}
	}
}

func TestMatcherFuzzyFallback(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	base := []domain.Entry{
		{Description: "unrelated thing entirely about dashboards"},
		{Description: "alert grouping reduces noise during incidents"},
	}
	items := []priority.Item{{
		Order: 1,
		Name:  "Alert grouping and noise reduction",
	}}

	out := m.Apply(base, items)
	if len(out) != 2 {
		t.Fatalf("fuzzy match must not inject: %d entries", len(out))
	}
	if !out[1].Priority || out[1].Title != "Alert grouping and noise reduction" {
		t.Errorf("best-overlap entry not promoted: %+v", out[1])
	}
	if out[0].Priority {
		t.Error("low-overlap entry wrongly promoted")
	}
}

func TestMatcherInjectsUnmatchedHighlight(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	base := []domain.Entry{{Description: "something about metrics rollups"}}
	items := []priority.Item{{
		Order:       2,
		Name:        "Completely novel capability",
		KeyMessages: "Ships a capability no release note mentions",
		Release:     "9.3.0",
		Tag:         "Streams",
		Links:       []domain.Link{pull("elastic/kibana", 777)},
	}}

	out := m.Apply(base, items)
	if len(out) != 2 {
		t.Fatalf("unmatched highlight must be injected: %d entries", len(out))
	}
	injected := out[1]
	if !injected.Priority || injected.PriorityRank != 2 {
		t.Errorf("injected entry not flagged: %+v", injected)
	}
	if injected.Release != "9.3.0" || injected.CategoryKey != "streams" {
		t.Errorf("injected fields: %+v", injected)
	}

	// A later overlapping highlight must not re-claim the injected entry
	// through its tracker identity twice over.
	again := m.Apply(out, nil)
	if len(again) != 2 {
		t.Errorf("re-applying with no items changed the list: %d", len(again))
	}
}

func TestMatcherFuzzyScoreIsMonotonic(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	itemTokens := m.tokens("streams wired partitioning support")
	low := m.tokens("streams support for something else")
	high := m.tokens("streams wired partitioning support lands")

	if Overlap(itemTokens, low) >= Overlap(itemTokens, high) {
		t.Errorf("more shared tokens must not lower the score: low=%v high=%v",
			Overlap(itemTokens, low), Overlap(itemTokens, high))
	}
}

func TestMatcherSkipsFuzzyForTooFewTokens(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	base := []domain.Entry{{Description: "streams everywhere"}}
	items := []priority.Item{{Order: 1, Name: "Streams"}}

	out := m.Apply(base, items)
	if len(out) != 2 {
		t.Fatalf("single-token highlight must inject, not fuzzy-match: %d", len(out))
	}
	if out[0].Priority {
		t.Error("base entry must stay unpromoted")
	}
}

func TestDeriveTitle(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"First sentence here. Second sentence.": "First sentence here",
		"short text":                            "short text",
	}
	for in, want := range cases {
		if got := deriveTitle(in); got != want {
			t.Errorf("deriveTitle(%q) = %q, want %q", in, got, want)
		}
	}

	long := "a description with no terminator that keeps going well past the eighty character boundary set for titles"
	got := deriveTitle(long)
	if len(got) > 84 || got[len(got)-3:] != "..." {
		t.Errorf("long description not truncated: %q", got)
	}
}

func TestDeriveTitleCutsOnRunes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 100)
	got := deriveTitle(long)
	if !utf8.ValidString(got) {
		t.Fatalf("derived title is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 83 {
		t.Errorf("rune count = %d, want 80 plus ellipsis", n)
	}

	// A terminator past the 80-rune window must not shortcut the cut.
	late := strings.Repeat("é", 90) + ". tail"
	if got := deriveTitle(late); utf8.RuneCountInString(got) != 83 {
		t.Errorf("late terminator not ignored: %q", got)
	}
}
