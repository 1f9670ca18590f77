package htmlnotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
	"whatsnewgen/internal/scanner"
)

func testSourceConfig(url string) config.SourceConfig {
	cfg := config.Default().Source
	cfg.NotesURL = url
	cfg.Retries = 3
	cfg.BackoffMs = 1
	return cfg
}

const samplePage = `
<html><body>
<div class="sidebar"><a href="#" id="elastic-observability-9.3.0-release-notes-link">9.3.0</a></div>
<div class="heading-wrapper" id="elastic-observability-9.3.0-release-notes"><h2>9.3.0</h2></div>
<div class="heading-wrapper" id="x"><h3>Features and enhancements</h3></div>
<ul>
  <li>Add support for X <a href="https://github.com/elastic/kibana/pull/123">#123</a></li>
  <li>Improve exponential histogram downsampling across hosts, <a href="https://github.com/elastic/elasticsearch/issues/456">ES#456</a></li>
  <li>short</li>
  <li>A linkless but sufficiently descriptive enhancement entry</li>
</ul>
<div class="heading-wrapper" id="y"><h3>Fixes</h3></div>
<ul><li>Fix a crash in the overview page <a href="https://github.com/elastic/kibana/pull/999">#999</a></li></ul>
<div class="heading-wrapper" id="elastic-observability-9.2.3-release-notes"><h2>9.2.3</h2></div>
<div class="heading-wrapper" id="z"><h3>Fixes</h3></div>
<ul><li>Only fixes here <a href="https://github.com/elastic/kibana/pull/888">#888</a></li></ul>
</body></html>`

func TestScanExtractsRequestedReleases(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	sc := New(server.Client(), testSourceConfig(server.URL), nil)
	entries, err := sc.Scan(context.Background(), scanner.Request{Releases: []string{"9.3.0"}})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}

	first := entries[0]
	if first.Description != "Add support for X" {
		t.Errorf("unexpected description: %q", first.Description)
	}
	if len(first.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(first.Links))
	}
	link := first.Links[0]
	if link.Kind != domain.LinkPull || link.Repo != "elastic/kibana" || link.Number != 123 {
		t.Errorf("unexpected link: %+v", link)
	}
	if first.Release != "9.3.0" {
		t.Errorf("unexpected release: %s", first.Release)
	}

	second := entries[1]
	if second.Links[0].Kind != domain.LinkIssue || second.Links[0].Repo != "elastic/elasticsearch" {
		t.Errorf("unexpected second link: %+v", second.Links[0])
	}
	if got := second.Description; got != "Improve exponential histogram downsampling across hosts" {
		t.Errorf("reference marker not stripped: %q", got)
	}
}

func TestScanNeverEmitsUnrequestedReleases(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	sc := New(server.Client(), testSourceConfig(server.URL), nil)

	for _, releases := range [][]string{nil, {"9.2.3"}, {"1.0.0"}, {"9.3.0", "9.2.3"}} {
		entries, err := sc.Scan(context.Background(), scanner.Request{Releases: releases})
		if err != nil {
			t.Fatalf("Scan error: %v", err)
		}
		requested := scanner.Request{Releases: releases}
		for _, e := range entries {
			if !requested.Wants(e.Release) {
				t.Fatalf("entry for unrequested release %s with request %v", e.Release, releases)
			}
		}
	}
}

func TestScanFixOnlyReleaseYieldsNoEntries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	sc := New(server.Client(), testSourceConfig(server.URL), nil)
	entries, err := sc.Scan(context.Background(), scanner.Request{Releases: []string{"9.2.3"}})
	if err != nil {
		t.Fatalf("fix-only release must not be an error, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries for fix-only release, got %d", len(entries))
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	sc := New(server.Client(), testSourceConfig(server.URL), nil)
	if _, err := sc.Scan(context.Background(), scanner.Request{Releases: []string{"9.3.0"}}); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchPermanentErrorIsImmediate(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	sc := New(server.Client(), testSourceConfig(server.URL), nil)
	if _, err := sc.Scan(context.Background(), scanner.Request{Releases: []string{"9.3.0"}}); err == nil {
		t.Fatal("expected fetch failure on 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", calls.Load())
	}
}

func TestReleaseSectionsDeduplicateAnchors(t *testing.T) {
	t.Parallel()

	page := `
<div class="heading-wrapper" id="elastic-observability-9.3.0-release-notes"><h2>9.3.0</h2></div>
<div class="heading-wrapper" id="elastic-observability-9.3.0-release-notes"><h2>9.3.0 again</h2></div>`

	sc := New(nil, testSourceConfig("http://unused"), nil)
	sections := sc.releaseSections(page)
	if len(sections) != 1 {
		t.Fatalf("expected 1 deduplicated section, got %d", len(sections))
	}
	if sections[0].release != "9.3.0" {
		t.Fatalf("unexpected release: %s", sections[0].release)
	}
}

func TestCleanItemTextStripsTrailingReferences(t *testing.T) {
	t.Parallel()

	sc := New(nil, testSourceConfig("http://unused"), nil)
	got, err := sc.cleanItemText(`Support saved queries in Discover sessions, #11111, ES#22222`)
	if err != nil {
		t.Fatalf("cleanItemText error: %v", err)
	}
	if got != "Support saved queries in Discover sessions" {
		t.Fatalf("trailing refs not stripped: %q", got)
	}
}
