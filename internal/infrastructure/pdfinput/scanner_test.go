package pdfinput

import (
	"context"
	"testing"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/scanner"
)

// fixtureDocument serves hand-built pages so the grid walk can be tested
// without a real PDF.
type fixtureDocument struct {
	texts  []string
	tables [][][][]string
}

func (d *fixtureDocument) PageCount() int { return len(d.texts) }

func (d *fixtureDocument) PageText(page int) string { return d.texts[page-1] }

func (d *fixtureDocument) PageTables(page int) [][][]string {
	if d.tables == nil || page > len(d.tables) {
		return nil
	}
	return d.tables[page-1]
}

func testSourceConfig() config.SourceConfig {
	return config.SourceConfig{
		ProductLabel: "Observability",
		TrackerRepos: []string{"elastic/kibana", "elastic/elasticsearch"},
	}
}

func newFixtureScanner(t *testing.T, doc Document) *Scanner {
	t.Helper()
	s := New("unused.pdf", testSourceConfig(), nil)
	s.open = func(string) (Document, error) { return doc, nil }
	return s
}

func headerRow() []string {
	return []string{"Feature name", "Tier", "Status", "Impact", "Key messages", "", "", "", "Competitive", "Links", "Owner"}
}

func TestExtractMergesContinuationRows(t *testing.T) {
	t.Parallel()

	doc := &fixtureDocument{
		texts: []string{
			"Release planning\nRelease number: 9.3\nRelease date: 2026-01-15\nFeature freeze: 2025-12-01\nObservability 9.3",
		},
		tables: [][][][]string{
			{{
				headerRow(),
				{"Streaming ingest", "Ent", "GA", "Large", "First half of the message", "", "", "", "", "https://github.com/elastic/kibana/pull/123", "alice"},
				{"", "", "", "", "and the second half", "", "", "", "", "https://www.elastic.co/docs/streams", ""},
			}},
		},
	}

	s := newFixtureScanner(t, doc)
	rows, meta, err := s.Extract(context.Background(), []string{"9.3"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after continuation merge, got %d", len(rows))
	}

	row := rows[0]
	if row.KeyMessages != "First half of the message and the second half" {
		t.Errorf("unexpected key messages: %q", row.KeyMessages)
	}
	if len(row.Links) != 2 {
		t.Fatalf("expected links from both physical rows, got %v", row.Links)
	}
	if row.Links[0] != "https://github.com/elastic/kibana/pull/123" {
		t.Errorf("unexpected first link: %q", row.Links[0])
	}
	if row.Release != "9.3" {
		t.Errorf("release = %q, want 9.3", row.Release)
	}
	if meta.ReleaseNumber != "9.3" || meta.ReleaseDate != "2026-01-15" || meta.FeatureFreeze != "2025-12-01" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestExtractSkipsPlaceholderAndHeaderRows(t *testing.T) {
	t.Parallel()

	doc := &fixtureDocument{
		texts: []string{"Observability 9.3"},
		tables: [][][][]string{
			{{
				headerRow(),
				{"<Name your feature>", "Ent", "GA", "", "template row", "", "", "", "", "", ""},
				{"Real feature", "Plat", "Tech", "Medium", "Ships for real", "", "", "", "", "", "bob"},
			}},
		},
	}

	s := newFixtureScanner(t, doc)
	rows, _, err := s.Extract(context.Background(), []string{"9.3"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Real feature" {
		t.Fatalf("expected only the real feature row, got %+v", rows)
	}
	if rows[0].Status != "Tech Preview" {
		t.Errorf("status = %q, want Tech Preview", rows[0].Status)
	}
	if rows[0].Tier != "Platinum" {
		t.Errorf("tier = %q, want Platinum", rows[0].Tier)
	}
}

func TestExtractTracksReleaseAcrossPages(t *testing.T) {
	t.Parallel()

	row94 := []string{"Newer feature", "Sta", "GA", "Small", "For the next release", "", "", "", "", "", ""}
	row93 := []string{"Older feature", "Sta", "GA", "Small", "For the current release", "", "", "", "", "", ""}

	doc := &fixtureDocument{
		texts: []string{
			"Observability 9.4",
			"continuation page",
			"Observability 9.3",
		},
		tables: [][][][]string{
			{{headerRow(), row94}},
			{{{"Carried feature", "Sta", "GA", "Small", "Still 9.4", "", "", "", "", "", ""}}},
			{{row93}},
		},
	}

	s := newFixtureScanner(t, doc)
	rows, _, err := s.Extract(context.Background(), []string{"9.4"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows for 9.4, got %+v", rows)
	}
	for _, r := range rows {
		if r.Release != "9.4" {
			t.Errorf("row %q has release %q", r.Name, r.Release)
		}
	}
}

func TestExtractDefaultsToFirstDiscoveredRelease(t *testing.T) {
	t.Parallel()

	doc := &fixtureDocument{
		texts: []string{"Observability 9.4", "Observability 9.3"},
		tables: [][][][]string{
			{{{"First release feature", "Ent", "GA", "", "text", "", "", "", "", "", ""}}},
			{{{"Second release feature", "Ent", "GA", "", "text", "", "", "", "", "", ""}}},
		},
	}

	s := newFixtureScanner(t, doc)
	rows, _, err := s.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "First release feature" {
		t.Fatalf("expected the first discovered release only, got %+v", rows)
	}
}

func TestExtractLinksSplitsWrappedURLs(t *testing.T) {
	t.Parallel()

	s := newFixtureScanner(t, &fixtureDocument{})
	cell := "Design doc for the rollout\n\nhttps://github.com/elastic/kibana/\npull/456.\nhttps://www.elastic.co/docs/page;"

	links, refs := s.extractLinks(cell)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %v", links)
	}
	if links[0] != "https://github.com/elastic/kibana/pull/456" {
		t.Errorf("wrapped URL not reassembled: %q", links[0])
	}
	if links[1] != "https://www.elastic.co/docs/page" {
		t.Errorf("trailing punctuation not trimmed: %q", links[1])
	}
	if len(refs) != 1 || refs[0] != "Design doc for the rollout" {
		t.Errorf("unexpected references: %v", refs)
	}
}

func TestScanConvertsRowsToEntries(t *testing.T) {
	t.Parallel()

	doc := &fixtureDocument{
		texts: []string{"Observability 9.3"},
		tables: [][][][]string{
			{{
				headerRow(),
				{"Tracked feature", "Ent", "GA", "Large", "Does something useful", "", "", "", "", "https://github.com/elastic/kibana/issues/77 https://www.elastic.co/docs/x", "carol"},
			}},
		},
	}

	s := newFixtureScanner(t, doc)
	entries, err := s.Scan(context.Background(), scanner.Request{Releases: []string{"9.3"}})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Title != "Tracked feature" || e.Description != "Does something useful" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if len(e.Links) != 2 {
		t.Fatalf("expected 2 links, got %+v", e.Links)
	}
	if e.Links[0].Kind != domain.LinkIssue || e.Links[0].Number != 77 || e.Links[0].Repo != "elastic/kibana" {
		t.Errorf("tracker link not classified: %+v", e.Links[0])
	}
	if e.Links[1].Kind != domain.LinkDoc {
		t.Errorf("doc link not classified: %+v", e.Links[1])
	}
	if e.PriorityRank != domain.DefaultPriorityRank {
		t.Errorf("rank = %v, want default", e.PriorityRank)
	}
}

func TestResolveStatusAndTier(t *testing.T) {
	t.Parallel()

	statuses := map[string]string{
		"GA":              "GA",
		"ga (target)":     "GA",
		"Tech":            "Tech Preview",
		"tech preview":    "Tech Preview",
		"In Tech Preview": "Tech Preview",
		"prev":            "Preview",
		"Public preview":  "Preview",
		"Beta":            "Beta",
		"Currently beta":  "Beta",
		"Planned":         "Planned",
	}
	for in, want := range statuses {
		if got := ResolveStatus(in); got != want {
			t.Errorf("ResolveStatus(%q) = %q, want %q", in, got, want)
		}
	}

	tiers := map[string]string{
		"Ent":        "Enterprise",
		"enterprise": "Enterprise",
		"Plat":       "Platinum",
		"Sta":        "Standard",
		"Custom":     "Custom",
	}
	for in, want := range tiers {
		if got := ResolveTier(in); got != want {
			t.Errorf("ResolveTier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToEntryUsesConfiguredDocPattern(t *testing.T) {
	t.Parallel()

	row := Row{Name: "Guide feature", Links: []string{"https://www.elastic.co/guide/streams"}}

	cfg := testSourceConfig()
	plain := New("unused.pdf", cfg, nil)
	if got := plain.toEntry(row).Links[0].Kind; got != domain.LinkOther {
		t.Errorf("without a pattern kind = %v, want other", got)
	}

	cfg.DocLinkPattern = `https?://(?:www\.)?elastic\.co/[^\s,)]+`
	configured := New("unused.pdf", cfg, nil)
	if got := configured.toEntry(row).Links[0].Kind; got != domain.LinkDoc {
		t.Errorf("with a pattern kind = %v, want doc", got)
	}
}
