package htmlnotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/scanner"
)

// ErrFetch wraps a release-notes page fetch that failed after all retries.
var ErrFetch = errors.New("htmlnotes: fetch failed")

// Scanner extracts feature entries from the product's HTML release-notes
// page for the requested releases only.
type Scanner struct {
	client *http.Client
	cfg    config.SourceConfig
	logger *slog.Logger

	anchorRe         *regexp.Regexp
	anchorFallbackRe *regexp.Regexp
	headingWrapRe    *regexp.Regexp
	headingPlainRe   *regexp.Regexp
	trackerLinkRe    *regexp.Regexp
}

var _ scanner.Scanner = (*Scanner)(nil)

var (
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	listItemRe    = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	refLabelRe    = regexp.MustCompile(`^(?:[A-Za-z]+#)?\d+$`)
	trailingRefRe = regexp.MustCompile(`[,\s]+(?:[A-Za-z]+#)?#?\d+(?:[,\s]+(?:[A-Za-z]+#)?#?\d+)*\s*$`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// New compiles the extraction patterns for the configured product.
func New(client *http.Client, cfg config.SourceConfig, log *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}

	slug := regexp.QuoteMeta(cfg.ProductSlug)
	repos := make([]string, 0, len(cfg.TrackerRepos))
	for _, r := range cfg.TrackerRepos {
		repos = append(repos, regexp.QuoteMeta(r))
	}
	repoAlt := strings.Join(repos, "|")

	return &Scanner{
		client: client,
		cfg:    cfg,
		logger: log,
		anchorRe: regexp.MustCompile(
			`(?is)<div[^>]*class=["']heading-wrapper["'][^>]*id=["']` + slug + `-(\d+\.\d+\.\d+)-release-notes["'][^>]*>.*?</div>`),
		anchorFallbackRe: regexp.MustCompile(
			`(?i)id=["']` + slug + `-(\d+\.\d+\.\d+)-release-notes["']`),
		headingWrapRe: regexp.MustCompile(
			`(?is)<div[^>]*class=["']heading-wrapper["'][^>]*>.*?<h3[^>]*>(.*?)</h3>.*?</div>`),
		headingPlainRe: regexp.MustCompile(`(?is)<h3[^>]*>(.*?)</h3>`),
		trackerLinkRe: regexp.MustCompile(
			`https://github\.com/(` + repoAlt + `)/(pull|issues)/(\d+)`),
	}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "htmlnotes"
}

// Scan fetches the release-notes page and extracts entries for the
// requested releases. A release without a feature heading contributes
// zero entries; that is expected for fix-only patch releases.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Entry, error) {
	page, err := s.fetchPage(ctx, s.cfg.NotesURL)
	if err != nil {
		return nil, err
	}
	return s.extract(page, req), nil
}

// fetchPage retries transient failures (429, 5xx, connection errors) with
// exponential backoff; any other HTTP error propagates immediately.
func (s *Scanner) fetchPage(ctx context.Context, url string) (string, error) {
	retries := s.cfg.Retries
	if retries <= 0 {
		retries = 1
	}
	backoff := time.Duration(s.cfg.BackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			wait := backoff * (1 << uint(attempt-1))
			s.warn("retrying fetch", "url", url, "attempt", attempt+1, "backoff", wait)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return string(body), nil
		}

		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %s", resp.Status)
			continue
		}
		return "", fmt.Errorf("%w: %s returned %s", ErrFetch, url, resp.Status)
	}

	return "", fmt.Errorf("%w: %s: %v", ErrFetch, url, lastErr)
}

type releaseSection struct {
	release string
	start   int
	bodyPos int
}

// extract walks the page section by section. A parse failure inside one
// release never aborts the others.
func (s *Scanner) extract(page string, req scanner.Request) []domain.Entry {
	sections := s.releaseSections(page)
	s.debug("located release sections", "count", len(sections))

	var entries []domain.Entry
	for i, sec := range sections {
		if !req.Wants(sec.release) {
			continue
		}

		end := len(page)
		if i+1 < len(sections) {
			end = sections[i+1].start
		}
		span := page[sec.bodyPos:end]

		featSpan := s.featureSpan(span)
		if featSpan == "" {
			s.debug("no feature heading for release", "release", sec.release)
			continue
		}

		items := s.listItems(featSpan, sec.release)
		s.debug("release scanned", "release", sec.release, "entries", len(items))
		entries = append(entries, items...)
	}
	return entries
}

// releaseSections locates release anchors by byte offset, keeping only the
// first occurrence per release: the page may link a release more than once.
func (s *Scanner) releaseSections(page string) []releaseSection {
	matches := s.anchorRe.FindAllStringSubmatchIndex(page, -1)
	if len(matches) == 0 {
		s.warn("no heading-wrapper anchors found, using fallback pattern")
		matches = s.anchorFallbackRe.FindAllStringSubmatchIndex(page, -1)
	}

	seen := map[string]struct{}{}
	var sections []releaseSection
	for _, m := range matches {
		release := page[m[2]:m[3]]
		if _, ok := seen[release]; ok {
			continue
		}
		seen[release] = struct{}{}
		sections = append(sections, releaseSection{release: release, start: m[0], bodyPos: m[1]})
	}
	return sections
}

// featureSpan returns the markup between the first features/enhancements
// heading and the next subsection heading. Fix and deprecation headings
// are skipped outright.
func (s *Scanner) featureSpan(span string) string {
	headings := s.headingWrapRe.FindAllStringSubmatchIndex(span, -1)
	if len(headings) == 0 {
		headings = s.headingPlainRe.FindAllStringSubmatchIndex(span, -1)
	}

	for i, h := range headings {
		text := strings.ToLower(strings.TrimSpace(tagRe.ReplaceAllString(span[h[2]:h[3]], "")))
		if strings.Contains(text, "fix") || strings.Contains(text, "deprecat") {
			continue
		}
		if strings.Contains(text, "feature") || strings.Contains(text, "enhancement") {
			end := len(span)
			if i+1 < len(headings) {
				end = headings[i+1][0]
			}
			return span[h[1]:end]
		}
	}
	return ""
}

// listItems extracts one entry per <li>, cleaning reference markers out of
// the text while re-scanning the unstripped markup for tracker links.
func (s *Scanner) listItems(featSpan, release string) []domain.Entry {
	var entries []domain.Entry
	for _, m := range listItemRe.FindAllStringSubmatch(featSpan, -1) {
		raw := m[1]

		text, err := s.cleanItemText(raw)
		if err != nil {
			s.warn("skipping malformed list item", "error", err)
			continue
		}

		links := s.trackerLinks(raw)
		if len(links) == 0 && len([]rune(text)) <= s.cfg.MinTextLen {
			continue
		}

		entries = append(entries, domain.Entry{
			Description:  text,
			Release:      release,
			Links:        links,
			PriorityRank: domain.DefaultPriorityRank,
		})
	}
	return entries
}

// cleanItemText strips tracker-reference anchors (bare "#123" / "ES#123"
// labels), removes remaining markup, and collapses whitespace.
func (s *Scanner) cleanItemText(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<li>" + raw + "</li>"))
	if err != nil {
		return "", fmt.Errorf("parse item: %w", err)
	}

	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		label := strings.TrimSpace(a.Text())
		if s.trackerLinkRe.MatchString(href) && refLabelRe.MatchString(strings.TrimPrefix(label, "#")) {
			a.Remove()
		}
	})

	text := doc.Text()
	text = trailingRefRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.Trim(text, " ,")
	return text, nil
}

// trackerLinks re-scans the unstripped item markup for pull/issue links.
func (s *Scanner) trackerLinks(raw string) []domain.Link {
	var links []domain.Link
	seen := map[string]struct{}{}
	for _, lm := range s.trackerLinkRe.FindAllStringSubmatch(raw, -1) {
		url := lm[0]
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}

		kind := domain.LinkIssue
		if lm[2] == "pull" {
			kind = domain.LinkPull
		}
		number, _ := strconv.Atoi(lm[3])
		links = append(links, domain.Link{
			Repo:   lm[1],
			Number: number,
			Kind:   kind,
			URL:    url,
		})
	}
	return links
}

func (s *Scanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Scanner) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
