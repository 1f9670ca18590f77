package config

// Default returns the compiled-in configuration: the seven-category
// taxonomy, keyword and label tables, and network defaults. Tests and
// callers may substitute any table wholesale via the YAML file.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Source: SourceConfig{
			NotesURL:       "https://www.elastic.co/docs/release-notes/observability",
			ProductSlug:    "elastic-observability",
			ProductLabel:   "Observability",
			TrackerRepos:   []string{"elastic/kibana", "elastic/elasticsearch"},
			DocLinkPattern: `https?://(?:www\.)?elastic\.co/[^\s,)]+`,
			MinTextLen:     20,
			UserAgent:      "whatsnewgen/1.0",
			TimeoutSeconds: 30,
			Retries:        3,
			BackoffMs:      2000,
		},
		GitHub: GitHubConfig{
			APIBaseURL:     "https://api.github.com",
			TimeoutSeconds: 30,
			CallDelayMs:    100,
		},
		Media: MediaConfig{
			Dir:       "media",
			AssetHost: "github.com/user-attachments/assets/",
			SkipPatterns: []string{
				"icon", "logo", "badge", "avatar", "favicon", ".svg",
				"spacer", "pixel", "tracking", "analytics", "1x1",
				"arrow", "caret", "chevron", "spinner", "loader",
			},
			MinDimension:   50,
			TimeoutSeconds: 60,
			FetchDelayMs:   200,
		},
		Links: LinksConfig{
			MaxWorkers:     10,
			TimeoutSeconds: 15,
		},
		Matcher: MatcherConfig{
			Stopwords: []string{"the", "and", "for", "in", "of", "to", "a", "an", "is", "with"},
			MinTokens: 2,
			Threshold: 0.5,
		},
		Taxonomy: TaxonomyConfig{
			Categories: []Category{
				{
					Key: "streams", Name: "Log Analytics & Streams", Tag: "Streams",
					Aliases: []string{"Streams"},
					Keywords: []string{
						"stream", "log", "ingest", "pipeline", "routing", "processor",
						"processing", "partitioning", "schema tab", "field mapping",
						"unlink", "preview",
					},
				},
				{
					Key: "infrastructure", Name: "Infrastructure Monitoring", Tag: "Infrastructure Monitoring",
					Keywords: []string{
						"infrastructure", "inventory", "host", "metrics", "tsdb", "downsampl",
						"time series", " ts ", "exponential histogram", "detect existing schemas",
						"rollback", "agent version", "integration version", "fleet",
					},
				},
				{
					Key: "ai-investigations", Name: "Agentic Investigations", Tag: "AI Assistant",
					Aliases: []string{"AI"},
					Keywords: []string{
						"ai ", "llm", "genai", "knowledge base", "assistant", "gemini",
						"bedrock", "function calling", "connector", "system prompt",
					},
				},
				{
					Key: "query-analysis", Name: "Query, Analysis & Alerting", Tag: "Alerting",
					Keywords: []string{
						"alert", "query", "discover", "case", "threshold", "rule",
						"api key", "dashboard", "saved quer", "workflow tag", "mute", "snooze",
					},
				},
				{
					Key: "opentelemetry", Name: "OpenTelemetry", Tag: "OpenTelemetry",
					Aliases:  []string{"OTel"},
					Keywords: []string{"otel", "opentelemetry", "edot", "opamp", "agent config"},
				},
				{
					Key: "apm", Name: "Application Performance Monitoring", Tag: "APM",
					Aliases: []string{"APM"},
					Keywords: []string{
						"apm", "trace", "span", "transaction", "service map", "service inventory",
						"error.id", "custom link", "jvm metric", "similar error",
					},
				},
				{
					Key: "digital-experience", Name: "Digital Experience Monitoring", Tag: "Synthetics",
					Keywords: []string{
						"synthetics", "monitor", "uptime", "slo", "sli", "browser",
						"journey step", "test run",
					},
				},
			},
			Labels: map[string]string{
				"Feature:Streams":                   "streams",
				"Feature:Logs":                      "streams",
				"Feature:Infrastructure Monitoring": "infrastructure",
				"Feature:Inventory":                 "infrastructure",
				"Feature:AI Assistant":              "ai-investigations",
				"Feature:Automatic Import":          "ai-investigations",
				"Feature:Query":                     "query-analysis",
				"Feature:Alerting":                  "query-analysis",
				"Feature:Cases":                     "query-analysis",
				"Feature:OpenTelemetry":             "opentelemetry",
				"Feature:EDOT":                      "opentelemetry",
				"Feature:APM":                       "apm",
				"Feature:Synthetics":                "digital-experience",
				"Feature:Uptime":                    "digital-experience",
				"Feature:SLO":                       "digital-experience",
			},
		},
	}
}
