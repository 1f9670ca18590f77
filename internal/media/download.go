package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
)

const (
	resultsFile = "download_results.json"
	mappingFile = "url_mapping.json"
)

// knownExtensions is the probe order for already-downloaded files.
var knownExtensions = []string{".png", ".jpg", ".gif", ".mp4", ".mov"}

// DownloadResult is one ledger record. The on-disk shape is shared with
// earlier runs and must stay backward compatible.
type DownloadResult struct {
	Key         string `json:"key"`
	Index       int    `json:"index"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	MediaType   string `json:"media_type"`
	SizeBytes   int    `json:"size_bytes"`
}

// mappingEntry groups downloaded URLs under their entry key.
type mappingEntry struct {
	Name string     `json:"name"`
	URLs [][]string `json:"urls"`
}

// Downloader materializes media candidates to local files, keeping a
// JSON ledger so re-runs skip work already done.
type Downloader struct {
	cfg    config.MediaConfig
	http   *http.Client
	logger *slog.Logger

	results []DownloadResult
	mapping map[string]*mappingEntry
	// existing lists filenames recorded by prior runs.
	existing map[string]struct{}
}

func NewDownloader(cfg config.MediaConfig, log *slog.Logger) *Downloader {
	return &Downloader{
		cfg:      cfg,
		http:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:   log,
		mapping:  make(map[string]*mappingEntry),
		existing: make(map[string]struct{}),
	}
}

// Run downloads every entry's media candidates and returns the enriched
// entries. Single failures are logged and skipped. The ledger is read
// once at the start and written once at the end.
func (d *Downloader) Run(ctx context.Context, entries []domain.Entry) ([]domain.EnrichedEntry, error) {
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	d.loadLedger()

	enriched := make([]domain.EnrichedEntry, 0, len(entries))
	for _, entry := range entries {
		ee := domain.EnrichedEntry{Entry: entry}
		if len(entry.MediaURLs) > 0 {
			ee.Media = d.downloadEntry(ctx, &entry)
		}
		enriched = append(enriched, ee)
	}

	// Entries whose files arrived in a previous run still get media from
	// the ledger.
	byKey := make(map[string][]domain.MediaItem)
	for _, r := range d.results {
		byKey[r.Key] = append(byKey[r.Key], domain.MediaItem{
			Filename: r.Filename,
			Kind:     domain.MediaKind(r.MediaType),
		})
	}
	for i := range enriched {
		if len(enriched[i].Media) == 0 {
			if items, ok := byKey[EntryKey(&enriched[i].Entry)]; ok {
				enriched[i].Media = items
			}
		}
	}

	if err := d.saveLedger(); err != nil {
		return nil, err
	}
	return enriched, nil
}

func (d *Downloader) downloadEntry(ctx context.Context, entry *domain.Entry) []domain.MediaItem {
	key := EntryKey(entry)
	if key == "" {
		return nil
	}
	if _, ok := d.mapping[key]; !ok {
		name := entry.Title
		if name == "" {
			name = entry.Description
			if r := []rune(name); len(r) > 60 {
				name = string(r[:60])
			}
		}
		d.mapping[key] = &mappingEntry{Name: name}
	}

	var items []domain.MediaItem
	for idx, candidate := range entry.MediaURLs {
		base := fmt.Sprintf("%s-%d", key, idx+1)

		if item, ok := d.alreadyDownloaded(base); ok {
			d.rememberURL(key, candidate.URL, string(item.Kind))
			items = append(items, item)
			continue
		}

		item, err := d.fetch(ctx, candidate, base, key, idx+1)
		if err != nil {
			d.warn("media download failed", "url", candidate.URL, "error", err)
			continue
		}
		items = append(items, item)

		if d.cfg.FetchDelayMs > 0 {
			select {
			case <-time.After(time.Duration(d.cfg.FetchDelayMs) * time.Millisecond):
			case <-ctx.Done():
				return items
			}
		}
	}
	return items
}

// alreadyDownloaded probes the deterministic filename against the ledger
// and the directory, over every recognized extension.
func (d *Downloader) alreadyDownloaded(base string) (domain.MediaItem, bool) {
	for _, ext := range knownExtensions {
		name := base + ext
		_, inLedger := d.existing[name]
		if !inLedger {
			if _, err := os.Stat(filepath.Join(d.cfg.Dir, name)); err != nil {
				continue
			}
		}
		kind := domain.MediaImage
		if ext == ".mp4" || ext == ".mov" {
			kind = domain.MediaVideo
		}
		return domain.MediaItem{Filename: name, Kind: kind}, true
	}
	return domain.MediaItem{}, false
}

func (d *Downloader) fetch(ctx context.Context, candidate domain.MediaURL, base, key string, idx int) (domain.MediaItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, nil)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (whatsnewgen)")

	resp, err := d.http.Do(req)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.MediaItem{}, fmt.Errorf("get: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	finalURL := candidate.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	kind := classifyMedia(finalURL, contentType)
	if candidate.Kind == domain.MediaImage || candidate.Kind == domain.MediaVideo {
		kind = candidate.Kind
	}
	filename := base + chooseExtension(kind, finalURL)

	if err := os.WriteFile(filepath.Join(d.cfg.Dir, filename), data, 0o644); err != nil {
		return domain.MediaItem{}, fmt.Errorf("write %s: %w", filename, err)
	}

	d.results = append(d.results, DownloadResult{
		Key:         key,
		Index:       idx,
		URL:         candidate.URL,
		Filename:    filename,
		ContentType: contentType,
		MediaType:   string(kind),
		SizeBytes:   len(data),
	})
	d.existing[filename] = struct{}{}
	d.rememberURL(key, candidate.URL, string(kind))

	d.debug("saved media file", "filename", filename, "bytes", len(data))
	return domain.MediaItem{Filename: filename, Kind: kind}, nil
}

func (d *Downloader) rememberURL(key, url, kind string) {
	m := d.mapping[key]
	if m == nil {
		m = &mappingEntry{}
		d.mapping[key] = m
	}
	for _, pair := range m.URLs {
		if len(pair) > 0 && pair[0] == url {
			return
		}
	}
	m.URLs = append(m.URLs, []string{url, kind})
}

// loadLedger merges prior-run records; decode failures start fresh.
func (d *Downloader) loadLedger() {
	if data, err := os.ReadFile(filepath.Join(d.cfg.Dir, resultsFile)); err == nil {
		var old []DownloadResult
		if err := json.Unmarshal(data, &old); err == nil {
			for _, r := range old {
				d.existing[r.Filename] = struct{}{}
			}
			d.results = old
		}
	}
	if data, err := os.ReadFile(filepath.Join(d.cfg.Dir, mappingFile)); err == nil {
		var old map[string]*mappingEntry
		if err := json.Unmarshal(data, &old); err == nil {
			d.mapping = old
		}
	}
}

// saveLedger writes both files whole; records from runs that no longer
// reference current entries are preserved.
func (d *Downloader) saveLedger() error {
	results, err := json.MarshalIndent(d.results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.cfg.Dir, resultsFile), results, 0o644); err != nil {
		return fmt.Errorf("write results ledger: %w", err)
	}

	mapping, err := json.MarshalIndent(d.mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.cfg.Dir, mappingFile), mapping, 0o644); err != nil {
		return fmt.Errorf("write mapping ledger: %w", err)
	}
	return nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// EntryKey derives the deterministic filename stem for an entry: the
// primary tracker number when one exists, else a slug of the title.
func EntryKey(e *domain.Entry) string {
	for _, l := range e.Links {
		if id, ok := l.Identity(); ok {
			return fmt.Sprintf("pr-%d", id.Number)
		}
	}
	text := e.Title
	if text == "" {
		text = e.Description
		if r := []rune(text); len(r) > 40 {
			text = string(r[:40])
		}
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(text), "-"), "-")
	if len(slug) > 30 {
		slug = strings.Trim(slug[:30], "-")
	}
	if slug == "" {
		return ""
	}
	return "doc-" + slug
}

func classifyMedia(finalURL, contentType string) domain.MediaKind {
	lower := strings.ToLower(finalURL)
	for _, ext := range rasterExtensions {
		if strings.HasSuffix(lower, ext) {
			return domain.MediaImage
		}
	}
	for _, ext := range []string{".mp4", ".mov", ".webm", ".avi"} {
		if strings.HasSuffix(lower, ext) {
			return domain.MediaVideo
		}
	}
	if strings.Contains(contentType, "video") {
		return domain.MediaVideo
	}
	return domain.MediaImage
}

func chooseExtension(kind domain.MediaKind, finalURL string) string {
	lower := strings.ToLower(finalURL)
	if kind == domain.MediaVideo {
		if strings.Contains(lower, ".mov") {
			return ".mov"
		}
		return ".mp4"
	}
	switch {
	case strings.Contains(lower, ".gif"):
		return ".gif"
	case strings.Contains(lower, ".jpg"), strings.Contains(lower, ".jpeg"):
		return ".jpg"
	}
	return ".png"
}

func (d *Downloader) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *Downloader) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
