package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeConfigOverridesOnlySetFields(t *testing.T) {
	t.Parallel()

	base := Default()
	merged := mergeConfig(base, Config{
		Source:  SourceConfig{NotesURL: "https://example.com/notes", Retries: 5},
		Matcher: MatcherConfig{Threshold: 0.7},
	})

	if merged.Source.NotesURL != "https://example.com/notes" {
		t.Errorf("NotesURL = %q", merged.Source.NotesURL)
	}
	if merged.Source.Retries != 5 {
		t.Errorf("Retries = %d", merged.Source.Retries)
	}
	if merged.Source.ProductSlug != base.Source.ProductSlug {
		t.Error("unset ProductSlug was clobbered")
	}
	if merged.Source.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d", merged.Source.TimeoutSeconds)
	}
	if merged.Matcher.Threshold != 0.7 {
		t.Errorf("Threshold = %v", merged.Matcher.Threshold)
	}
	if merged.Matcher.MinTokens != base.Matcher.MinTokens {
		t.Error("unset MinTokens was clobbered")
	}
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
source:
  notesUrl: https://example.com/from-file
github:
  callDelayMs: 250
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(githubTokenEnv, "ghp_test")
	t.Setenv(mediaDirEnv, "/tmp/media")

	cfg := Load()

	if cfg.Source.NotesURL != "https://example.com/from-file" {
		t.Errorf("NotesURL = %q", cfg.Source.NotesURL)
	}
	if cfg.GitHub.CallDelayMs != 250 {
		t.Errorf("CallDelayMs = %d", cfg.GitHub.CallDelayMs)
	}
	if cfg.GitHub.Token != "ghp_test" {
		t.Errorf("Token = %q", cfg.GitHub.Token)
	}
	if cfg.Media.Dir != "/tmp/media" {
		t.Errorf("Media.Dir = %q", cfg.Media.Dir)
	}
}

func TestCategoryLookups(t *testing.T) {
	t.Parallel()

	tax := Default().Taxonomy

	if c, ok := tax.CategoryByKey("opentelemetry"); !ok || c.Name != "OpenTelemetry" {
		t.Errorf("CategoryByKey(opentelemetry) = %+v, %v", c, ok)
	}
	if _, ok := tax.CategoryByKey("missing"); ok {
		t.Error("CategoryByKey(missing) = true")
	}

	if c, ok := tax.CategoryByName("OTel"); !ok || c.Key != "opentelemetry" {
		t.Errorf("alias lookup = %+v, %v", c, ok)
	}
	if c, ok := tax.CategoryByName("Agentic Investigations"); !ok || c.Key != "ai-investigations" {
		t.Errorf("name lookup = %+v, %v", c, ok)
	}
}
