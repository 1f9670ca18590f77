package domain

// LinkKind classifies an external link attached to an entry.
type LinkKind string

const (
	LinkPull  LinkKind = "pull"
	LinkIssue LinkKind = "issue"
	LinkDoc   LinkKind = "doc"
	LinkOther LinkKind = "other"
)

// Link is one external reference carried by an entry.
type Link struct {
	Repo   string
	Number int
	Kind   LinkKind
	URL    string
}

// Identity references an external pull request or issue. It is the
// dedup/merge key; the zero Identity means "no external reference".
type Identity struct {
	Repo   string
	Number int
}

// Identity returns the link's identity, valid only for tracker links.
func (l Link) Identity() (Identity, bool) {
	if l.Number <= 0 || (l.Kind != LinkPull && l.Kind != LinkIssue) {
		return Identity{}, false
	}
	return Identity{Repo: l.Repo, Number: l.Number}, true
}

// MediaKind distinguishes downloaded media files.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	// MediaUnknown marks a candidate URL whose kind is resolved at
	// download time from the response content type.
	MediaUnknown MediaKind = "unknown"
)

// MediaURL is a candidate media reference harvested from a linked body,
// not yet materialized to a local file.
type MediaURL struct {
	URL  string
	Kind MediaKind
}

// MediaItem is a materialized local media file.
type MediaItem struct {
	Filename string
	Kind     MediaKind
}

// DefaultPriorityRank sorts non-priority entries after every curated one.
const DefaultPriorityRank = 999

// Entry is one release-note or curated feature before media resolution.
type Entry struct {
	Description  string
	Title        string
	Release      string
	CategoryKey  string
	CategoryName string
	Tags         []string
	Links        []Link
	Labels       []string
	Status       string
	Priority     bool
	PriorityRank float64
	// MediaURLs holds candidate media discovered during enrichment. The
	// resolver consumes it and produces an EnrichedEntry.
	MediaURLs []MediaURL
}

// Identities returns every external identity the entry references.
func (e *Entry) Identities() []Identity {
	var ids []Identity
	for _, l := range e.Links {
		if id, ok := l.Identity(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// AppendLinks adds links not already present by URL. Existing links are
// never dropped or replaced.
func (e *Entry) AppendLinks(links ...Link) {
	seen := make(map[string]struct{}, len(e.Links))
	for _, l := range e.Links {
		seen[l.URL] = struct{}{}
	}
	for _, l := range links {
		if _, ok := seen[l.URL]; ok {
			continue
		}
		seen[l.URL] = struct{}{}
		e.Links = append(e.Links, l)
	}
}

// EnrichedEntry pairs an entry with its resolved local media.
type EnrichedEntry struct {
	Entry
	Media []MediaItem
}
