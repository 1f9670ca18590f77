package merge

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/priority"
)

// Matcher reconciles curated highlight items against a base entry list,
// promoting matched entries and injecting unmatched items.
type Matcher struct {
	cfg      config.MatcherConfig
	taxonomy config.TaxonomyConfig
	logger   *slog.Logger

	stopwords map[string]struct{}
}

func NewMatcher(cfg config.MatcherConfig, taxonomy config.TaxonomyConfig, log *slog.Logger) *Matcher {
	stop := make(map[string]struct{}, len(cfg.Stopwords))
	for _, w := range cfg.Stopwords {
		stop[w] = struct{}{}
	}
	return &Matcher{cfg: cfg, taxonomy: taxonomy, logger: log, stopwords: stop}
}

// Apply runs every highlight item, in item order, against the base list.
// Matching is identity first, token-overlap second, injection last.
// Returns a new slice; the input slice's backing array is not reused.
func (m *Matcher) Apply(base []domain.Entry, items []priority.Item) []domain.Entry {
	entries := make([]domain.Entry, len(base))
	copy(entries, base)

	identityIndex := make(map[domain.Identity][]int)
	for i, e := range entries {
		for _, id := range e.Identities() {
			identityIndex[id] = append(identityIndex[id], i)
		}
	}

	claimed := make(map[int]struct{})

	for _, item := range items {
		matched := false

		for _, id := range item.Identities() {
			for _, idx := range identityIndex[id] {
				m.promote(&entries[idx], item)
				claimed[idx] = struct{}{}
				matched = true
			}
		}

		if !matched {
			if idx, ok := m.bestFuzzy(entries, claimed, item); ok {
				m.promote(&entries[idx], item)
				claimed[idx] = struct{}{}
				matched = true
				if m.logger != nil {
					m.logger.Info("matched highlight by text overlap",
						"highlight", item.Name, "entry", entries[idx].Title)
				}
			}
		}

		if !matched {
			entries = append(entries, m.inject(item))
			claimed[len(entries)-1] = struct{}{}
			if m.logger != nil {
				m.logger.Info("added highlight missing from release notes", "highlight", item.Name)
			}
		}
	}

	for i := range entries {
		if entries[i].Title == "" {
			entries[i].Title = deriveTitle(entries[i].Description)
		}
	}
	return entries
}

// promote applies a highlight item's field upgrades to a base entry.
func (m *Matcher) promote(e *domain.Entry, item priority.Item) {
	e.Priority = true
	e.PriorityRank = float64(item.Order)
	e.Title = item.Name
	if item.KeyMessages != "" && len(item.KeyMessages) > len(e.Description) {
		e.Description = item.KeyMessages
	}
	m.applyCategory(e, item)
}

func (m *Matcher) applyCategory(e *domain.Entry, item priority.Item) {
	if item.Tag == "" {
		return
	}
	if cat, ok := m.taxonomy.CategoryByName(item.Tag); ok {
		e.CategoryKey = cat.Key
		e.CategoryName = cat.Name
		if len(item.FeatureTags) > 0 {
			e.Tags = item.FeatureTags
		} else if cat.Tag != "" {
			e.Tags = []string{cat.Tag}
		}
	}
}

// bestFuzzy finds the unclaimed entry with the highest token-overlap
// score, accepted only at or above the configured threshold.
func (m *Matcher) bestFuzzy(entries []domain.Entry, claimed map[int]struct{}, item priority.Item) (int, bool) {
	itemTokens := m.tokens(item.Name)
	if len(itemTokens) < m.cfg.MinTokens {
		return 0, false
	}

	bestScore := 0.0
	bestIdx := -1
	for i, e := range entries {
		if _, ok := claimed[i]; ok {
			continue
		}
		score := Overlap(itemTokens, m.tokens(e.Description))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx >= 0 && bestScore >= m.cfg.Threshold {
		return bestIdx, true
	}
	return 0, false
}

// inject builds a fresh entry from an unmatched highlight item.
func (m *Matcher) inject(item priority.Item) domain.Entry {
	desc := item.KeyMessages
	if desc == "" {
		desc = item.Name
	}
	e := domain.Entry{
		Title:        item.Name,
		Description:  desc,
		Release:      item.Release,
		Status:       item.Status,
		Links:        item.Links,
		Priority:     true,
		PriorityRank: float64(item.Order),
	}
	m.applyCategory(&e, item)
	return e
}

// tokens lowercases, strips non-alphanumerics, and drops stopwords.
func (m *Matcher) tokens(text string) map[string]struct{} {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}

	out := make(map[string]struct{})
	for _, w := range strings.Fields(sb.String()) {
		if _, stop := m.stopwords[w]; !stop {
			out[w] = struct{}{}
		}
	}
	return out
}

// Overlap is the share of a's tokens present in b.
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	hits := 0
	for w := range a {
		if _, ok := b[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

// deriveTitle takes the first sentence when it ends within 80 characters,
// otherwise a hard 80-character cut with an ellipsis. Cuts count runes so
// multibyte text never splits mid-sequence.
func deriveTitle(desc string) string {
	if idx := strings.IndexAny(desc, ".!"); idx >= 0 && utf8.RuneCountInString(desc[:idx]) < 80 {
		return strings.TrimSpace(desc[:idx])
	}
	if r := []rune(desc); len(r) > 80 {
		return strings.TrimSpace(string(r[:80])) + "..."
	}
	return strings.TrimSpace(desc)
}
