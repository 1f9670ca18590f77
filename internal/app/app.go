// Package app wires configuration into a runnable pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"whatsnewgen/internal/classify"
	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/infrastructure/github"
	"whatsnewgen/internal/infrastructure/htmlnotes"
	"whatsnewgen/internal/infrastructure/pdfinput"
	"whatsnewgen/internal/infrastructure/storage"
	"whatsnewgen/internal/logging"
	"whatsnewgen/internal/media"
	"whatsnewgen/internal/merge"
	"whatsnewgen/internal/ports"
	"whatsnewgen/internal/priority"
	"whatsnewgen/internal/render"
	"whatsnewgen/internal/scanner"
	"whatsnewgen/internal/usecase"
)

// Options selects the inputs of one generation run.
type Options struct {
	Releases       []string
	PDFPath        string
	HighlightsPath string
	SelectionsPath string
	OutputDir      string
	// SkipMedia leaves entries unenriched and downloads nothing.
	SkipMedia bool
}

// Application wires configs to use cases.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// Generate runs the full curation pipeline and writes snapshots.
func (a *Application) Generate(ctx context.Context, opts Options) error {
	registry := scanner.NewRegistry()
	var enabled []string
	if a.cfg.Source.NotesURL != "" {
		registry.Register(htmlnotes.New(nil, a.cfg.Source,
			a.logger.With("component", "scanner.html")))
		enabled = append(enabled, "htmlnotes")
	}
	if opts.PDFPath != "" {
		registry.Register(pdfinput.New(opts.PDFPath, a.cfg.Source,
			a.logger.With("component", "scanner.pdf")))
		enabled = append(enabled, "pdfinput")
	}
	if len(enabled) == 0 {
		return fmt.Errorf("no input sources: set source.notesUrl or pass a pdf path")
	}

	var sources []ports.EntrySource
	for _, name := range enabled {
		s, err := registry.Resolve(name)
		if err != nil {
			return fmt.Errorf("resolve scanner: %w", err)
		}
		sources = append(sources, s)
	}

	curated, highlights, err := a.loadCuratedInputs(opts)
	if err != nil {
		return err
	}

	deps := usecase.PipelineDeps{
		Sources: sources,
		Classifier: classify.New(a.cfg.Taxonomy, a.cfg.Overrides,
			a.logger.With("component", "classifier")),
		Matcher: merge.NewMatcher(a.cfg.Matcher, a.cfg.Taxonomy,
			a.logger.With("component", "matcher")),
		TrackerRepos: a.cfg.Source.TrackerRepos,
		Logger:       a.logger.With("component", "pipeline"),
	}

	if !opts.SkipMedia {
		client := github.NewClient(a.cfg.GitHub, a.logger.With("component", "github"))
		delay := time.Duration(a.cfg.GitHub.CallDelayMs) * time.Millisecond
		deps.Enricher = media.NewEnricher(client, a.cfg.Media, delay,
			a.logger.With("component", "enricher"))
		deps.Media = media.NewDownloader(a.cfg.Media, a.logger.With("component", "media"))
	}

	if a.cfg.Database.DSN != "" {
		archive, err := storage.Open(ctx, a.cfg.Database.DSN)
		if err != nil {
			a.logger.Warn("archive unavailable, continuing without it", "error", err)
		} else {
			deps.Archive = archive
			defer archive.Close()
		}
	}

	pipeline := usecase.NewPipeline(deps)
	res, err := pipeline.Run(ctx, usecase.Request{
		Releases:   opts.Releases,
		Curated:    curated,
		Highlights: highlights,
	})
	if err != nil {
		return err
	}

	a.logger.Info("pipeline finished",
		"entries", len(res.Entries),
		"duplicates", res.Duplicates,
		"already_published", res.AlreadyPublished)

	return render.WriteSnapshots(opts.OutputDir, res.Entries)
}

// ExtractPDF dumps the raw feature grid of a release-input document.
func (a *Application) ExtractPDF(ctx context.Context, path string, releases []string) (string, error) {
	s := pdfinput.New(path, a.cfg.Source, a.logger.With("component", "scanner.pdf"))
	rows, meta, err := s.Extract(ctx, releases)
	if err != nil {
		return "", err
	}
	return render.RowsMarkdown(rows, meta), nil
}

func (a *Application) loadCuratedInputs(opts Options) ([]domain.Entry, []priority.Item, error) {
	docRe := a.docLinkRe()

	var curated []domain.Entry
	if opts.SelectionsPath != "" {
		content, err := os.ReadFile(opts.SelectionsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read selections: %w", err)
		}
		curated = priority.ParseSelections(string(content), docRe)
		a.logger.Info("parsed selected features", "count", len(curated))
	}

	var highlights []priority.Item
	if opts.HighlightsPath != "" {
		content, err := os.ReadFile(opts.HighlightsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read highlights: %w", err)
		}
		headerRe := regexp.MustCompile(
			regexp.QuoteMeta(a.cfg.Source.ProductLabel) + `\s+(\d+\.\d+)`)
		highlights = priority.ParseHighlights(string(content), headerRe, docRe)
		a.logger.Info("parsed highlighted features", "count", len(highlights))
	}

	return curated, highlights, nil
}

// docLinkRe compiles the configured documentation-link pattern; nil falls
// back to the parsers' built-in default.
func (a *Application) docLinkRe() *regexp.Regexp {
	if a.cfg.Source.DocLinkPattern == "" {
		return nil
	}
	re, err := regexp.Compile(a.cfg.Source.DocLinkPattern)
	if err != nil {
		a.logger.Warn("invalid doc link pattern, using default",
			"pattern", a.cfg.Source.DocLinkPattern, "error", err)
		return nil
	}
	return re
}
