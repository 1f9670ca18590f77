package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/merge"
	"whatsnewgen/internal/ports"
	"whatsnewgen/internal/priority"
	"whatsnewgen/internal/scanner"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources    []ports.EntrySource
	Classifier ports.Classifier
	Matcher    *merge.Matcher
	Enricher   ports.Enricher
	Media      ports.MediaStore
	Archive    ports.RunArchive
	// TrackerRepos narrows the archive's published-identity lookup.
	TrackerRepos []string
	Logger       *slog.Logger
}

// Request selects what a pipeline run processes.
type Request struct {
	Releases []string
	// Curated entries merge ahead of scanned ones.
	Curated []domain.Entry
	// Highlights cross-reference against the merged list.
	Highlights []priority.Item
}

// Result is the ordered, enriched outcome of a run.
type Result struct {
	Entries    []domain.EnrichedEntry
	Duplicates int
	// AlreadyPublished lists identities a previous archived run emitted.
	AlreadyPublished int
}

// Pipeline implements the curation workflow: scan, classify, merge,
// cross-reference, enrich, download, order.
type Pipeline struct {
	sources      []ports.EntrySource
	classifier   ports.Classifier
	matcher      *merge.Matcher
	enricher     ports.Enricher
	media        ports.MediaStore
	archive      ports.RunArchive
	trackerRepos []string
	logger       *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		sources:      deps.Sources,
		classifier:   deps.Classifier,
		matcher:      deps.Matcher,
		enricher:     deps.Enricher,
		media:        deps.Media,
		archive:      deps.Archive,
		trackerRepos: deps.TrackerRepos,
		logger:       deps.Logger,
	}
}

// Run executes one full pipeline pass.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	var scanned []domain.Entry
	for _, src := range p.sources {
		entries, err := src.Scan(ctx, scanner.Request{Releases: req.Releases})
		if err != nil {
			return Result{}, fmt.Errorf("scan %s: %w", src.Name(), err)
		}
		p.info("source scanned", "source", src.Name(), "entries", len(entries))
		scanned = append(scanned, entries...)
	}

	merged := merge.Merge(req.Curated, scanned, p.logger)
	entries := merged.Entries

	if p.matcher != nil && len(req.Highlights) > 0 {
		entries = p.matcher.Apply(entries, req.Highlights)
	}

	if p.enricher != nil {
		p.enricher.Enrich(ctx, entries)
	}

	if p.classifier != nil {
		p.classifier.Classify(entries)
	}

	entries = Order(entries)

	var enriched []domain.EnrichedEntry
	if p.media != nil {
		var err error
		enriched, err = p.media.Run(ctx, entries)
		if err != nil {
			return Result{}, fmt.Errorf("resolve media: %w", err)
		}
	} else {
		enriched = make([]domain.EnrichedEntry, len(entries))
		for i, e := range entries {
			enriched[i] = domain.EnrichedEntry{Entry: e}
		}
	}

	res := Result{Entries: enriched, Duplicates: merged.Duplicates}

	if p.archive != nil {
		release := ""
		if len(req.Releases) > 0 {
			release = req.Releases[0]
		}
		published, err := p.archive.PublishedIdentities(ctx, release, p.trackerRepos)
		if err != nil {
			p.warn("archive lookup failed", "error", err)
		} else {
			for _, e := range enriched {
				for _, id := range e.Identities() {
					if _, ok := published[id]; ok {
						res.AlreadyPublished++
						break
					}
				}
			}
		}
		if err := p.archive.RecordRun(ctx, release, enriched); err != nil {
			p.warn("archive record failed", "error", err)
		}
	}

	return res, nil
}

// Order returns a new slice sorted by priority class, then rank, then
// release in descending numeric order. The input is left untouched.
func Order(entries []domain.Entry) []domain.Entry {
	out := make([]domain.Entry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ca, cb := priorityClass(a), priorityClass(b); ca != cb {
			return ca < cb
		}
		if a.PriorityRank != b.PriorityRank {
			return a.PriorityRank < b.PriorityRank
		}
		return domain.CompareVersions(a.Release, b.Release) > 0
	})
	return out
}

// priorityClass groups curated entries ahead of everything else.
func priorityClass(e domain.Entry) int {
	if e.Priority {
		return 0
	}
	return 1
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
