package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/infrastructure/github"
)

// TrackerClient is the slice of the API client the enricher needs.
type TrackerClient interface {
	FetchTrackerItem(ctx context.Context, repo string, number int, isPull bool) (*github.TrackerItem, error)
	OrgBlocked(org string) bool
}

// Enricher attaches tracker labels and media candidates to entries.
type Enricher struct {
	client TrackerClient
	http   *http.Client
	cfg    config.MediaConfig
	delay  time.Duration
	logger *slog.Logger
}

func NewEnricher(client TrackerClient, cfg config.MediaConfig, callDelay time.Duration, log *slog.Logger) *Enricher {
	return &Enricher{
		client: client,
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		cfg:    cfg,
		delay:  callDelay,
		logger: log,
	}
}

// Enrich fetches each distinct tracker identity once and folds the
// response's labels and media candidates into every entry referencing
// it. Entries left without tracker media fall back to their linked
// documentation pages. Failures degrade to unenriched entries.
func (e *Enricher) Enrich(ctx context.Context, entries []domain.Entry) {
	cache := e.fetchBodies(ctx, entries)

	for i := range entries {
		entry := &entries[i]
		labels := map[string]struct{}{}

		for _, l := range entry.Links {
			id, ok := l.Identity()
			if !ok {
				continue
			}
			item := cache[id]
			if item == nil {
				continue
			}
			for _, lbl := range item.Labels {
				labels[lbl.Name] = struct{}{}
			}
			entry.MediaURLs = append(entry.MediaURLs, HarvestBody(item.Body, e.cfg.AssetHost)...)
		}

		entry.Labels = sortedKeys(labels)
		for _, lbl := range entry.Labels {
			if tag, ok := strings.CutPrefix(lbl, "Feature:"); ok && tag != "" {
				if !contains(entry.Tags, tag) {
					entry.Tags = append(entry.Tags, tag)
				}
			}
		}
		entry.MediaURLs = dedupURLs(entry.MediaURLs)
	}

	e.docFallback(ctx, entries)
}

// fetchBodies resolves every distinct identity once.
func (e *Enricher) fetchBodies(ctx context.Context, entries []domain.Entry) map[domain.Identity]*github.TrackerItem {
	cache := make(map[domain.Identity]*github.TrackerItem)

	for _, entry := range entries {
		for _, l := range entry.Links {
			id, ok := l.Identity()
			if !ok {
				continue
			}
			if _, done := cache[id]; done {
				continue
			}
			org, _, _ := strings.Cut(id.Repo, "/")
			if e.client.OrgBlocked(org) {
				continue
			}

			item, err := e.client.FetchTrackerItem(ctx, id.Repo, id.Number, l.Kind == domain.LinkPull)
			if err != nil {
				e.warn("tracker fetch failed", "repo", id.Repo, "number", id.Number, "error", err)
				continue
			}
			cache[id] = item
			e.pause(ctx)
		}
	}
	return cache
}

// docFallback fetches linked documentation pages for entries that ended
// enrichment with no media candidates. Each page is fetched at most once
// per run.
func (e *Enricher) docFallback(ctx context.Context, entries []domain.Entry) {
	fetched := map[string]struct{}{}

	for i := range entries {
		entry := &entries[i]
		if len(entry.MediaURLs) > 0 {
			continue
		}
		for _, l := range entry.Links {
			if l.Kind != domain.LinkDoc {
				continue
			}
			if _, done := fetched[l.URL]; done {
				continue
			}
			fetched[l.URL] = struct{}{}

			html, err := e.fetchPage(ctx, l.URL)
			if err != nil {
				e.warn("doc page fetch failed", "url", l.URL, "error", err)
				continue
			}
			images, err := DocImages(html, l.URL, e.cfg)
			if err != nil {
				e.warn("doc page parse failed", "url", l.URL, "error", err)
				continue
			}
			if len(images) > 0 {
				entry.MediaURLs = images
				break
			}
			e.pause(ctx)
		}
	}
}

func (e *Enricher) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (whatsnewgen)")

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}

func (e *Enricher) pause(ctx context.Context) {
	if e.delay <= 0 {
		return
	}
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
	}
}

func (e *Enricher) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func dedupURLs(urls []domain.MediaURL) []domain.MediaURL {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u.URL]; ok {
			continue
		}
		seen[u.URL] = struct{}{}
		out = append(out, u)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
