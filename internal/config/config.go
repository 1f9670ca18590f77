package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "WHATSNEW_CONFIG"
	githubTokenEnv = "GITHUB_TOKEN"
	databaseDSNEnv = "DATABASE_DSN"
	notesURLEnv    = "WHATSNEW_NOTES_URL"
	mediaDirEnv    = "WHATSNEW_MEDIA_DIR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig  `yaml:"logging"`
	Source    SourceConfig   `yaml:"source"`
	GitHub    GitHubConfig   `yaml:"github"`
	Media     MediaConfig    `yaml:"media"`
	Links     LinksConfig    `yaml:"links"`
	Matcher   MatcherConfig  `yaml:"matcher"`
	Database  DatabaseConfig `yaml:"database"`
	Taxonomy  TaxonomyConfig `yaml:"taxonomy"`
	Overrides []OverrideRule `yaml:"overrides"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig describes the scraped release-notes sources.
type SourceConfig struct {
	// NotesURL is the HTML release-notes page.
	NotesURL string `yaml:"notesUrl"`
	// ProductSlug appears in release anchors, e.g. "elastic-observability"
	// in id="elastic-observability-9.3.0-release-notes".
	ProductSlug string `yaml:"productSlug"`
	// ProductLabel precedes release numbers in the PDF input, e.g.
	// "Observability" in "Observability 9.3".
	ProductLabel string `yaml:"productLabel"`
	// TrackerRepos are the repositories whose pull/issue links count as
	// entry identities.
	TrackerRepos []string `yaml:"trackerRepos"`
	// DocLinkPattern matches documentation-page URLs; matching links are
	// classified as doc links and feed the media image fallback.
	DocLinkPattern string `yaml:"docLinkPattern"`
	// MinTextLen admits a linkless item only when its cleaned text is
	// strictly longer than this.
	MinTextLen     int    `yaml:"minTextLen"`
	UserAgent      string `yaml:"userAgent"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	Retries        int    `yaml:"retries"`
	BackoffMs      int    `yaml:"backoffMs"`
}

// GitHubConfig wires the authenticated API client.
type GitHubConfig struct {
	APIBaseURL     string `yaml:"apiBaseUrl"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	// CallDelayMs is inserted between successive API calls.
	CallDelayMs int `yaml:"callDelayMs"`
}

// MediaConfig controls media harvesting and downloads.
type MediaConfig struct {
	Dir string `yaml:"dir"`
	// AssetHost is the only host media URLs in tracker bodies may point at.
	AssetHost string `yaml:"assetHost"`
	// SkipPatterns excludes icons/spacers/chrome by filename substring.
	SkipPatterns   []string `yaml:"skipPatterns"`
	MinDimension   int      `yaml:"minDimension"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
	FetchDelayMs   int      `yaml:"fetchDelayMs"`
}

// LinksConfig bounds the accessibility-probe worker pool.
type LinksConfig struct {
	MaxWorkers     int `yaml:"maxWorkers"`
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// MatcherConfig tunes priority-list cross referencing.
type MatcherConfig struct {
	Stopwords []string `yaml:"stopwords"`
	MinTokens int      `yaml:"minTokens"`
	Threshold float64  `yaml:"threshold"`
}

// DatabaseConfig describes the optional run-archive connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// Category is one topical bucket entries are classified into.
type Category struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	// Tag is the default secondary label for entries landing here without
	// an upstream one.
	Tag string `yaml:"tag"`
	// Keywords trigger keyword inference; list order across categories is
	// the tie-break.
	Keywords []string `yaml:"keywords"`
	// Aliases are short names the priority list may use in TAG fields.
	Aliases []string `yaml:"aliases"`
}

// TaxonomyConfig bundles the fixed category set and the upstream-label map.
type TaxonomyConfig struct {
	Categories []Category `yaml:"categories"`
	// Labels maps upstream tracker labels to category keys.
	Labels map[string]string `yaml:"labels"`
}

// CategoryByKey resolves a category key to its definition.
func (t TaxonomyConfig) CategoryByKey(key string) (Category, bool) {
	for _, c := range t.Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName resolves a display name or alias to its definition.
func (t TaxonomyConfig) CategoryByName(name string) (Category, bool) {
	for _, c := range t.Categories {
		if c.Name == name {
			return c, true
		}
		for _, alias := range c.Aliases {
			if alias == name {
				return c, true
			}
		}
	}
	return Category{}, false
}

// OverrideRule relocates, renames, or extends entries the heuristics
// misplace. Rules apply in order; later rules may re-match an entry an
// earlier rule already touched.
type OverrideRule struct {
	// Match is a case-insensitive substring tested against descriptions.
	Match string `yaml:"match"`
	// MatchTitle requires an exact title match instead.
	MatchTitle   string         `yaml:"matchTitle"`
	CategoryKey  string         `yaml:"categoryKey"`
	Title        string         `yaml:"title"`
	Priority     *bool          `yaml:"priority"`
	PriorityRank float64        `yaml:"priorityRank"`
	AddLinks     []OverrideLink `yaml:"addLinks"`
}

// OverrideLink is a link appended by an override rule.
type OverrideLink struct {
	URL  string `yaml:"url"`
	Kind string `yaml:"kind"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(githubTokenEnv); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(notesURLEnv); v != "" {
		c.Source.NotesURL = v
	}
	if v := os.Getenv(mediaDirEnv); v != "" {
		c.Media.Dir = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Source.NotesURL != "" {
		base.Source.NotesURL = override.Source.NotesURL
	}
	if override.Source.ProductSlug != "" {
		base.Source.ProductSlug = override.Source.ProductSlug
	}
	if override.Source.ProductLabel != "" {
		base.Source.ProductLabel = override.Source.ProductLabel
	}
	if len(override.Source.TrackerRepos) > 0 {
		base.Source.TrackerRepos = override.Source.TrackerRepos
	}
	if override.Source.DocLinkPattern != "" {
		base.Source.DocLinkPattern = override.Source.DocLinkPattern
	}
	if override.Source.MinTextLen > 0 {
		base.Source.MinTextLen = override.Source.MinTextLen
	}
	if override.Source.UserAgent != "" {
		base.Source.UserAgent = override.Source.UserAgent
	}
	if override.Source.TimeoutSeconds > 0 {
		base.Source.TimeoutSeconds = override.Source.TimeoutSeconds
	}
	if override.Source.Retries > 0 {
		base.Source.Retries = override.Source.Retries
	}
	if override.Source.BackoffMs > 0 {
		base.Source.BackoffMs = override.Source.BackoffMs
	}

	if override.GitHub.APIBaseURL != "" {
		base.GitHub.APIBaseURL = override.GitHub.APIBaseURL
	}
	if override.GitHub.Token != "" {
		base.GitHub.Token = override.GitHub.Token
	}
	if override.GitHub.TimeoutSeconds > 0 {
		base.GitHub.TimeoutSeconds = override.GitHub.TimeoutSeconds
	}
	if override.GitHub.CallDelayMs > 0 {
		base.GitHub.CallDelayMs = override.GitHub.CallDelayMs
	}

	if override.Media.Dir != "" {
		base.Media.Dir = override.Media.Dir
	}
	if override.Media.AssetHost != "" {
		base.Media.AssetHost = override.Media.AssetHost
	}
	if len(override.Media.SkipPatterns) > 0 {
		base.Media.SkipPatterns = override.Media.SkipPatterns
	}
	if override.Media.MinDimension > 0 {
		base.Media.MinDimension = override.Media.MinDimension
	}
	if override.Media.TimeoutSeconds > 0 {
		base.Media.TimeoutSeconds = override.Media.TimeoutSeconds
	}
	if override.Media.FetchDelayMs > 0 {
		base.Media.FetchDelayMs = override.Media.FetchDelayMs
	}

	if override.Links.MaxWorkers > 0 {
		base.Links.MaxWorkers = override.Links.MaxWorkers
	}
	if override.Links.TimeoutSeconds > 0 {
		base.Links.TimeoutSeconds = override.Links.TimeoutSeconds
	}

	if len(override.Matcher.Stopwords) > 0 {
		base.Matcher.Stopwords = override.Matcher.Stopwords
	}
	if override.Matcher.MinTokens > 0 {
		base.Matcher.MinTokens = override.Matcher.MinTokens
	}
	if override.Matcher.Threshold > 0 {
		base.Matcher.Threshold = override.Matcher.Threshold
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if len(override.Taxonomy.Categories) > 0 {
		base.Taxonomy.Categories = override.Taxonomy.Categories
	}
	if len(override.Taxonomy.Labels) > 0 {
		base.Taxonomy.Labels = override.Taxonomy.Labels
	}
	if len(override.Overrides) > 0 {
		base.Overrides = override.Overrides
	}

	return base
}
