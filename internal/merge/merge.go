// Package merge combines independently curated and scanned entry lists
// and reconciles them against the priority highlights.
package merge

import (
	"log/slog"

	"whatsnewgen/internal/domain"
)

// Result reports what a merge kept and dropped.
type Result struct {
	Entries    []domain.Entry
	Duplicates int
}

// Merge combines a curated and a scanned entry list, dropping scanned
// entries whose tracker identities already appear in the curated list.
// Accepted scanned identities join the working set, so two scanned
// near-duplicates cannot both survive. Output order is curated entries
// first, then surviving scanned entries, each in original order.
func Merge(curated, scanned []domain.Entry, log *slog.Logger) Result {
	seen := make(map[domain.Identity]struct{})
	for _, e := range curated {
		for _, id := range e.Identities() {
			seen[id] = struct{}{}
		}
	}

	out := make([]domain.Entry, 0, len(curated)+len(scanned))
	out = append(out, curated...)

	duplicates := 0
	for _, e := range scanned {
		ids := e.Identities()
		dup := false
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				dup = true
				break
			}
		}
		if dup {
			duplicates++
			if log != nil {
				log.Debug("dropped duplicate entry", "title", e.Title, "release", e.Release)
			}
			continue
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
		out = append(out, e)
	}

	return Result{Entries: out, Duplicates: duplicates}
}
