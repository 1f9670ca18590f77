// Package render writes the ordered entry list as markdown and JSON
// snapshots consumable by downstream templating.
package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/infrastructure/pdfinput"
)

// Snapshot is the JSON shape of one rendered entry.
type Snapshot struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Release      string   `json:"release,omitempty"`
	Category     string   `json:"category,omitempty"`
	CategoryKey  string   `json:"category_key,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Status       string   `json:"status,omitempty"`
	Priority     bool     `json:"priority,omitempty"`
	PriorityRank float64  `json:"priority_rank,omitempty"`
	Links        []string `json:"links,omitempty"`
	Media        []string `json:"media,omitempty"`
}

// WriteSnapshots writes entries.json and entries.md into dir.
func WriteSnapshots(dir string, entries []domain.EnrichedEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	snaps := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		s := Snapshot{
			Title:        e.Title,
			Description:  e.Description,
			Release:      e.Release,
			Category:     e.CategoryName,
			CategoryKey:  e.CategoryKey,
			Tags:         e.Tags,
			Status:       e.Status,
			Priority:     e.Priority,
			PriorityRank: e.PriorityRank,
		}
		for _, l := range e.Links {
			s.Links = append(s.Links, l.URL)
		}
		for _, m := range e.Media {
			s.Media = append(s.Media, m.Filename)
		}
		snaps = append(snaps, s)
	}

	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "entries.json"), data, 0o644); err != nil {
		return fmt.Errorf("write entries.json: %w", err)
	}

	md := Markdown(entries)
	if err := os.WriteFile(filepath.Join(dir, "entries.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write entries.md: %w", err)
	}
	return nil
}

// Markdown renders entries grouped by category, preserving input order
// inside each group.
func Markdown(entries []domain.EnrichedEntry) string {
	var sb strings.Builder
	sb.WriteString("# What's New\n")

	var order []string
	grouped := map[string][]domain.EnrichedEntry{}
	for _, e := range entries {
		name := e.CategoryName
		if name == "" {
			name = "Uncategorized"
		}
		if _, ok := grouped[name]; !ok {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], e)
	}

	for _, name := range order {
		fmt.Fprintf(&sb, "\n## %s\n", name)
		for _, e := range grouped[name] {
			fmt.Fprintf(&sb, "\n### %s\n\n", e.Title)
			if e.Status != "" || e.Release != "" {
				fmt.Fprintf(&sb, "*%s*\n\n", strings.TrimSpace(e.Status+" "+e.Release))
			}
			sb.WriteString(e.Description)
			sb.WriteString("\n")
			for _, l := range e.Links {
				fmt.Fprintf(&sb, "\n- %s", l.URL)
			}
			if len(e.Links) > 0 {
				sb.WriteString("\n")
			}
			for _, m := range e.Media {
				fmt.Fprintf(&sb, "\n![%s](%s)\n", e.Title, m.Filename)
			}
		}
	}
	return sb.String()
}

// RowsMarkdown renders raw extracted grid rows, for the extract-pdf
// subcommand.
func RowsMarkdown(rows []pdfinput.Row, meta pdfinput.Metadata) string {
	var sb strings.Builder
	sb.WriteString("# Extracted Features\n")
	if meta.ReleaseNumber != "" {
		fmt.Fprintf(&sb, "\nRelease: %s", meta.ReleaseNumber)
	}
	if meta.ReleaseDate != "" {
		fmt.Fprintf(&sb, "\nRelease date: %s", meta.ReleaseDate)
	}
	if meta.FeatureFreeze != "" {
		fmt.Fprintf(&sb, "\nFeature freeze: %s", meta.FeatureFreeze)
	}
	sb.WriteString("\n")

	for i, row := range rows {
		fmt.Fprintf(&sb, "\n## %d. %s\n\n", i+1, row.Name)
		if row.Status != "" {
			fmt.Fprintf(&sb, "- **Status:** %s\n", row.Status)
		}
		if row.Tier != "" {
			fmt.Fprintf(&sb, "- **Tier:** %s\n", row.Tier)
		}
		if row.Impact != "" {
			fmt.Fprintf(&sb, "- **Impact:** %s\n", row.Impact)
		}
		if row.Release != "" {
			fmt.Fprintf(&sb, "- **Release:** %s\n", row.Release)
		}
		if row.KeyMessages != "" {
			fmt.Fprintf(&sb, "- **Key Messages:** %s\n", row.KeyMessages)
		}
		if row.Owner != "" {
			fmt.Fprintf(&sb, "- **Owner:** %s\n", row.Owner)
		}
		for _, link := range row.Links {
			fmt.Fprintf(&sb, "- %s\n", link)
		}
		for _, ref := range row.References {
			fmt.Fprintf(&sb, "- %s\n", ref)
		}
	}
	return sb.String()
}
