package pdfinput

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/scanner"
)

// Fixed column layout of the release-input feature grid.
const (
	colName        = 0
	colTier        = 1
	colStatus      = 2
	colImpact      = 3
	colKeyMessages = 4
	colCompetitive = 8
	colLinks       = 9
	colOwner       = 10

	minRowColumns = 5
)

// headerSentinel identifies the grid's header row.
const headerSentinel = "Feature name"

// placeholderSentinel marks the blank template row PMs copy from.
const placeholderSentinel = "name your"

// Row is one feature row of the release-input grid, before conversion to
// a domain entry. References keeps non-URL link-cell fragments.
type Row struct {
	Name        string
	Tier        string
	Status      string
	Impact      string
	KeyMessages string
	Competitive string
	Owner       string
	Links       []string
	References  []string
	Release     string
}

// Metadata is pulled from the document's first page.
type Metadata struct {
	ReleaseNumber string
	ReleaseDate   string
	FeatureFreeze string
}

// Scanner extracts feature entries from a tabular release-input PDF.
type Scanner struct {
	path   string
	cfg    config.SourceConfig
	logger *slog.Logger
	// open is swapped by tests to supply fixture documents.
	open func(path string) (Document, error)

	releaseRe *regexp.Regexp
	urlRe     *regexp.Regexp
	trackerRe *regexp.Regexp
	docRe     *regexp.Regexp
}

var _ scanner.Scanner = (*Scanner)(nil)

// New builds a PDF scanner for the given file path.
func New(path string, cfg config.SourceConfig, log *slog.Logger) *Scanner {
	repos := make([]string, 0, len(cfg.TrackerRepos))
	for _, r := range cfg.TrackerRepos {
		repos = append(repos, regexp.QuoteMeta(r))
	}

	var docRe *regexp.Regexp
	if cfg.DocLinkPattern != "" {
		var err error
		if docRe, err = regexp.Compile(cfg.DocLinkPattern); err != nil && log != nil {
			log.Warn("invalid doc link pattern, ignoring", "pattern", cfg.DocLinkPattern, "error", err)
		}
	}

	return &Scanner{
		path:   path,
		cfg:    cfg,
		logger: log,
		open:   Open,
		releaseRe: regexp.MustCompile(
			regexp.QuoteMeta(cfg.ProductLabel) + ` (\d+\.\d+)`),
		urlRe: regexp.MustCompile(`https?://`),
		trackerRe: regexp.MustCompile(
			`https://github\.com/(` + strings.Join(repos, "|") + `)/(pull|issues)/(\d+)`),
		docRe: docRe,
	}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "pdfinput"
}

// Scan extracts entries for the requested releases. With an empty request
// it targets the single most recent release found in the document.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Entry, error) {
	rows, _, err := s.Extract(ctx, req.Releases)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, s.toEntry(row))
	}
	return entries, nil
}

// Extract returns the raw grid rows plus document metadata, for callers
// that want the full column set (the extract-pdf command).
func (s *Scanner) Extract(ctx context.Context, releases []string) ([]Row, Metadata, error) {
	doc, err := s.open(s.path)
	if err != nil {
		return nil, Metadata{}, err
	}

	if len(releases) == 0 {
		if latest := s.discoverReleases(doc); len(latest) > 0 {
			releases = latest[:1]
		}
	}
	wanted := make(map[string]struct{}, len(releases))
	for _, r := range releases {
		wanted[r] = struct{}{}
	}

	var (
		rows           []Row
		headerCaptured bool
		currentRelease string
	)

	for page := 1; page <= doc.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, Metadata{}, err
		}

		pageText := doc.PageText(page)

		// Track the current release while paging forward; pages before
		// the first header belong to no release.
		for _, m := range s.releaseRe.FindAllStringSubmatch(pageText, -1) {
			if m[1] != currentRelease {
				currentRelease = m[1]
			}
		}

		if _, ok := wanted[currentRelease]; !ok {
			continue
		}

		tables := doc.PageTables(page)
		if len(tables) == 0 {
			continue
		}

		for _, raw := range tables[0] {
			if len(raw) < minRowColumns {
				continue
			}
			if strings.Contains(cell(raw, colName), headerSentinel) {
				headerCaptured = true
				continue
			}

			if strings.TrimSpace(cell(raw, colName)) == "" {
				// Continuation of the previous row: the PDF text layer
				// split one logical row across lines.
				if len(rows) == 0 {
					continue
				}
				prev := &rows[len(rows)-1]
				if km := cell(raw, colKeyMessages); km != "" {
					prev.KeyMessages = strings.TrimSpace(prev.KeyMessages + " " + km)
				}
				if lc := cell(raw, colLinks); lc != "" {
					links, refs := s.extractLinks(lc)
					prev.Links = append(prev.Links, links...)
					prev.References = append(prev.References, refs...)
				}
				continue
			}

			row := Row{
				Name:        cell(raw, colName),
				Tier:        ResolveTier(cell(raw, colTier)),
				Status:      ResolveStatus(cell(raw, colStatus)),
				Impact:      extractImpact(cell(raw, colImpact)),
				KeyMessages: cell(raw, colKeyMessages),
				Competitive: cell(raw, colCompetitive),
				Owner:       cell(raw, colOwner),
				Release:     currentRelease,
			}
			row.Links, row.References = s.extractLinks(cell(raw, colLinks))

			if row.Name == "" || strings.Contains(strings.ToLower(row.Name), placeholderSentinel) {
				continue
			}
			rows = append(rows, row)
		}
	}

	if !headerCaptured && len(rows) > 0 {
		s.warnf("no header row found; column positions unverified")
	}
	s.debugf("extracted rows", "count", len(rows))

	return rows, s.metadata(doc), nil
}

// discoverReleases lists release identifiers in document order.
func (s *Scanner) discoverReleases(doc Document) []string {
	var releases []string
	seen := map[string]struct{}{}
	for page := 1; page <= doc.PageCount(); page++ {
		for _, m := range s.releaseRe.FindAllStringSubmatch(doc.PageText(page), -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			releases = append(releases, m[1])
		}
	}
	return releases
}

// metadata reads release number, date, and feature freeze from page 1.
func (s *Scanner) metadata(doc Document) Metadata {
	text := doc.PageText(1)
	return Metadata{
		ReleaseNumber: firstGroup(`Release number:\s*(.+)`, text),
		ReleaseDate:   firstGroup(`Release date:\s*(.+)`, text),
		FeatureFreeze: firstGroup(`Feature freeze:\s*(.+)`, text),
	}
}

func firstGroup(pattern, text string) string {
	m := regexp.MustCompile(pattern).FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractLinks splits a link cell on URL-start boundaries, reassembling
// URLs the PDF text layer hard-wrapped. Non-URL fragments longer than
// three characters are kept as free-text references.
func (s *Scanner) extractLinks(text string) (links []string, refs []string) {
	starts := s.urlRe.FindAllStringIndex(text, -1)

	bounds := make([]int, 0, len(starts)+2)
	bounds = append(bounds, 0)
	for _, idx := range starts {
		bounds = append(bounds, idx[0])
	}
	bounds = append(bounds, len(text))

	for i := 0; i+1 < len(bounds); i++ {
		part := strings.TrimSpace(text[bounds[i]:bounds[i+1]])
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "http") {
			url := strings.ReplaceAll(part, "\n", "")
			url = strings.TrimRight(strings.TrimSpace(url), ".,;")
			links = append(links, url)
		} else if len(part) > 3 {
			for _, ref := range regexp.MustCompile(`\n{2,}`).Split(part, -1) {
				ref = strings.TrimSpace(strings.ReplaceAll(ref, "\n", " "))
				if len(ref) > 3 {
					refs = append(refs, ref)
				}
			}
		}
	}
	return links, refs
}

// toEntry converts a grid row to a domain entry, classifying each URL.
func (s *Scanner) toEntry(row Row) domain.Entry {
	e := domain.Entry{
		Title:        row.Name,
		Description:  row.KeyMessages,
		Release:      row.Release,
		Status:       row.Status,
		PriorityRank: domain.DefaultPriorityRank,
	}
	if e.Description == "" {
		e.Description = row.Name
	}

	for _, url := range row.Links {
		if m := s.trackerRe.FindStringSubmatch(url); m != nil {
			number, _ := strconv.Atoi(m[3])
			kind := domain.LinkIssue
			if m[2] == "pull" {
				kind = domain.LinkPull
			}
			e.Links = append(e.Links, domain.Link{Repo: m[1], Number: number, Kind: kind, URL: url})
			continue
		}
		kind := domain.LinkOther
		if strings.Contains(url, "/docs/") || (s.docRe != nil && s.docRe.MatchString(url)) {
			kind = domain.LinkDoc
		}
		e.Links = append(e.Links, domain.Link{Kind: kind, URL: url})
	}
	return e
}

// ResolveStatus expands abbreviated status values; the PDF vocabulary is
// wider than the curated-list one and is kept that way on purpose.
func ResolveStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case strings.HasPrefix(s, "ga"):
		return "GA"
	case strings.Contains(s, "te"):
		return "Tech Preview"
	case strings.Contains(s, "pre"):
		return "Preview"
	case strings.Contains(s, "beta"):
		return "Beta"
	}
	return status
}

// ResolveTier expands abbreviated subscription-tier values.
func ResolveTier(tier string) string {
	t := strings.ToLower(strings.TrimSpace(tier))
	switch {
	case strings.Contains(t, "ent"):
		return "Enterprise"
	case strings.Contains(t, "plat"):
		return "Platinum"
	case strings.Contains(t, "sta"):
		return "Standard"
	}
	return tier
}

func extractImpact(text string) string {
	for _, level := range []string{"Large", "Medium", "Small"} {
		if strings.Contains(text, level) {
			return level
		}
	}
	return text
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (s *Scanner) debugf(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Scanner) warnf(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
