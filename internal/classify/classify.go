package classify

import (
	"log/slog"
	"strings"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
)

// UncategorizedKey is assigned when no rule matches an entry.
const UncategorizedKey = "uncategorized"

// Classifier assigns taxonomy categories to entries using override rules,
// tracker labels, and keyword tables, in that precedence order.
type Classifier struct {
	taxonomy  config.TaxonomyConfig
	overrides []config.OverrideRule
	logger    *slog.Logger
}

func New(taxonomy config.TaxonomyConfig, overrides []config.OverrideRule, log *slog.Logger) *Classifier {
	return &Classifier{
		taxonomy:  taxonomy,
		overrides: overrides,
		logger:    log,
	}
}

// Classify assigns a category to every entry in place. Entries that
// arrive pre-categorized keep their key but still gain a default tag.
func (c *Classifier) Classify(entries []domain.Entry) {
	for i := range entries {
		c.classifyOne(&entries[i])
	}
}

func (c *Classifier) classifyOne(e *domain.Entry) {
	c.applyOverrides(e)

	if e.CategoryKey == "" {
		if key := c.byLabels(e.Labels); key != "" {
			e.CategoryKey = key
		}
	}
	if e.CategoryKey == "" {
		if key := c.byKeywords(e.Description + " " + e.Title); key != "" {
			e.CategoryKey = key
		}
	}
	if e.CategoryKey == "" {
		e.CategoryKey = UncategorizedKey
		if c.logger != nil {
			c.logger.Debug("entry left uncategorized", "title", e.Title)
		}
	}

	if cat, ok := c.taxonomy.CategoryByKey(e.CategoryKey); ok {
		e.CategoryName = cat.Name
		if len(e.Tags) == 0 && cat.Tag != "" {
			e.Tags = []string{cat.Tag}
		}
	}
}

// applyOverrides runs every matching rule in table order; later rules
// build on the effects of earlier ones.
func (c *Classifier) applyOverrides(e *domain.Entry) {
	for _, rule := range c.overrides {
		if !ruleMatches(rule, e) {
			continue
		}
		if rule.CategoryKey != "" {
			e.CategoryKey = rule.CategoryKey
		}
		if rule.Title != "" {
			e.Title = rule.Title
		}
		if rule.Priority != nil {
			e.Priority = *rule.Priority
		}
		if rule.PriorityRank > 0 {
			e.PriorityRank = rule.PriorityRank
		}
		for _, l := range rule.AddLinks {
			kind := domain.LinkKind(l.Kind)
			if kind == "" {
				kind = domain.LinkDoc
			}
			e.AppendLinks(domain.Link{Kind: kind, URL: l.URL})
		}
	}
}

// ruleMatches accepts either a description substring hit or an exact
// title hit; a rule with neither matcher never fires.
func ruleMatches(rule config.OverrideRule, e *domain.Entry) bool {
	if rule.Match != "" &&
		strings.Contains(strings.ToLower(e.Description), strings.ToLower(rule.Match)) {
		return true
	}
	return rule.MatchTitle != "" && e.Title == rule.MatchTitle
}

// byLabels resolves tracker labels through the label table.
func (c *Classifier) byLabels(labels []string) string {
	for _, label := range labels {
		if key, ok := c.taxonomy.Labels[label]; ok {
			return key
		}
	}
	return ""
}

// byKeywords scans categories in declared order; the first category with
// a keyword hit wins, so narrower categories must be listed first.
func (c *Classifier) byKeywords(text string) string {
	lower := strings.ToLower(text)
	for _, cat := range c.taxonomy.Categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return cat.Key
			}
		}
	}
	return ""
}
