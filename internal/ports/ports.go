package ports

import (
	"context"

	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/scanner"
)

// EntrySource pulls raw entries from a release-notes document.
type EntrySource interface {
	Name() string
	Scan(ctx context.Context, req scanner.Request) ([]domain.Entry, error)
}

// Classifier assigns taxonomy categories to entries.
type Classifier interface {
	Classify(entries []domain.Entry)
}

// Enricher attaches tracker labels and media candidates.
type Enricher interface {
	Enrich(ctx context.Context, entries []domain.Entry)
}

// MediaStore materializes media candidates to local files.
type MediaStore interface {
	Run(ctx context.Context, entries []domain.Entry) ([]domain.EnrichedEntry, error)
}

// RunArchive records published entry identities per pipeline run.
type RunArchive interface {
	RecordRun(ctx context.Context, release string, entries []domain.EnrichedEntry) error
	// PublishedIdentities reports identities earlier runs emitted for the
	// release; a non-empty repos list narrows the lookup.
	PublishedIdentities(ctx context.Context, release string, repos []string) (map[domain.Identity]struct{}, error)
	Close() error
}
