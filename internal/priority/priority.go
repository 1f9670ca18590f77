// Package priority parses the human-curated feature lists that override
// and supplement the auto-scanned release notes.
package priority

import (
	"regexp"
	"strconv"
	"strings"

	"whatsnewgen/internal/domain"
)

// Item is one curated highlight, parsed from a "## N. Name" section.
type Item struct {
	Order       int
	Name        string
	KeyMessages string
	Status      string
	Impact      string
	Tag         string
	FeatureTags []string
	Release     string
	Links       []domain.Link
}

// Identities returns the tracker identities referenced by the item.
func (it Item) Identities() []domain.Identity {
	var ids []domain.Identity
	for _, l := range it.Links {
		if id, ok := l.Identity(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

var (
	highlightSectionRe = regexp.MustCompile(`(?m)^## \d+\.\s+`)
	selectionSectionRe = regexp.MustCompile(`(?m)^### \d+\.\s+`)

	keyMessagesRe = regexp.MustCompile(`(?s)\*\*Key Messages:\*\*\s*(.*?)(?:\n-\s+\*\*|\n---|$)`)
	descriptionRe = regexp.MustCompile(`\*\*Description:\*\*\s*(.+)`)
	statusRe      = regexp.MustCompile(`\*\*Status:\*\*\s*(.+)`)
	impactRe      = regexp.MustCompile(`\*\*Impact:\*\*\s*(\w+)`)
	tagRe         = regexp.MustCompile(`\*\*TAGS?:?\*\*\s*"([^"]+)"`)
	featureTagsRe = regexp.MustCompile(`\*\*Feature Tags:\*\*\s*(.+)`)
	releaseRe     = regexp.MustCompile(`\*\*Release:\*\*\s*(.+)`)

	trackerLinkRe = regexp.MustCompile(`https://github\.com/([\w.-]+/[\w.-]+)/(pull|issues)/(\d+)`)
	docLinkRe     = regexp.MustCompile(`https?://(?:www\.)?elastic\.co/[^\s,)]+`)

	spaceRe = regexp.MustCompile(`\s+`)
)

// ParseHighlights parses a curated highlights document. headerRe extracts
// the document-level release (e.g. "Observability (9.3)" submatch 1) used
// as the default when a section carries no Release field. docRe selects
// documentation links; nil keeps the built-in pattern.
func ParseHighlights(content string, headerRe, docRe *regexp.Regexp) []Item {
	docRelease := ""
	if headerRe != nil {
		if m := headerRe.FindStringSubmatch(content); m != nil {
			docRelease = m[1] + ".0"
		}
	}

	sections := highlightSectionRe.Split(content, -1)
	items := make([]Item, 0, len(sections))

	for i, section := range sections[1:] {
		section = strings.TrimSpace(section)
		name, _, _ := strings.Cut(section, "\n")

		item := Item{
			Order:       i + 1,
			Name:        strings.TrimSpace(name),
			KeyMessages: field(keyMessagesRe, section),
			Status:      NormalizeStatus(field(statusRe, section)),
			Impact:      field(impactRe, section),
			Tag:         field(tagRe, section),
			FeatureTags: splitTags(field(featureTagsRe, section)),
			Release:     field(releaseRe, section),
			Links:       ExtractLinks(section, docRe),
		}
		item.KeyMessages = spaceRe.ReplaceAllString(item.KeyMessages, " ")
		item.KeyMessages = strings.TrimSpace(item.KeyMessages)
		if item.Impact == "" {
			item.Impact = "Unknown"
		}
		if item.Release == "" {
			item.Release = docRelease
		}
		items = append(items, item)
	}
	return items
}

// ParseSelections parses a selected-features document ("### N." sections
// with a Description field) into curated entries.
func ParseSelections(content string, docRe *regexp.Regexp) []domain.Entry {
	sections := selectionSectionRe.Split(content, -1)
	entries := make([]domain.Entry, 0, len(sections))

	for _, section := range sections[1:] {
		section = strings.TrimSpace(section)
		firstLine, _, _ := strings.Cut(section, "\n")
		firstLine = strings.TrimSpace(firstLine)

		desc := field(descriptionRe, section)
		if desc == "" {
			desc = firstLine
		}

		title := firstLine
		if len(title) > 80 {
			title = strings.TrimSpace(title[:80]) + "..."
		}

		status := field(statusRe, section)
		if status == "" {
			status = "GA"
		}

		entries = append(entries, domain.Entry{
			Title:        title,
			Description:  desc,
			Release:      field(releaseRe, section),
			Status:       NormalizeStatus(status),
			CategoryName: field(tagRe, section),
			Tags:         splitTags(field(featureTagsRe, section)),
			Links:        ExtractLinks(section, docRe),
			PriorityRank: domain.DefaultPriorityRank,
		})
	}
	return entries
}

// ExtractLinks harvests tracker and documentation links, deduplicated by
// URL in first-seen order. A nil docRe keeps the built-in pattern.
func ExtractLinks(text string, docRe *regexp.Regexp) []domain.Link {
	if docRe == nil {
		docRe = docLinkRe
	}

	var links []domain.Link
	seen := map[string]struct{}{}

	for _, m := range trackerLinkRe.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[0]]; ok {
			continue
		}
		seen[m[0]] = struct{}{}
		number, _ := strconv.Atoi(m[3])
		kind := domain.LinkIssue
		if m[2] == "pull" {
			kind = domain.LinkPull
		}
		links = append(links, domain.Link{Repo: m[1], Number: number, Kind: kind, URL: m[0]})
	}

	for _, url := range docRe.FindAllString(text, -1) {
		url = strings.TrimRight(url, ".,;")
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		links = append(links, domain.Link{Kind: domain.LinkDoc, URL: url})
	}
	return links
}

// NormalizeStatus collapses the curated status vocabulary to GA or
// Tech Preview; the curated lists never carry anything finer.
func NormalizeStatus(status string) string {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(status)), "GA") {
		return "GA"
	}
	return "Tech Preview"
}

func field(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
