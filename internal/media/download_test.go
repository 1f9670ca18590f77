package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
)

func TestDownloaderIsIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.MediaConfig{Dir: dir, TimeoutSeconds: 5}
	entries := []domain.Entry{{
		Title: "Feature",
		Links: []domain.Link{{Kind: domain.LinkPull, Repo: "elastic/kibana", Number: 12}},
		MediaURLs: []domain.MediaURL{
			{URL: srv.URL + "/shot.png", Kind: domain.MediaImage},
		},
	}}

	first, err := NewDownloader(cfg, nil).Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first[0].Media) != 1 || first[0].Media[0].Filename != "pr-12-1.png" {
		t.Fatalf("unexpected media: %+v", first[0].Media)
	}
	if _, err := os.Stat(filepath.Join(dir, "pr-12-1.png")); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	second, err := NewDownloader(cfg, nil).Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("second run re-downloaded: %d hits", hits.Load())
	}
	if len(second[0].Media) != 1 || second[0].Media[0].Filename != "pr-12-1.png" {
		t.Errorf("second run lost media: %+v", second[0].Media)
	}
}

func TestDownloaderPreservesForeignLedgerRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := []DownloadResult{{
		Key: "pr-999", Index: 1, URL: "https://old/x.png",
		Filename: "pr-999-1.png", MediaType: "image",
	}}
	data, _ := json.Marshal(old)
	if err := os.WriteFile(filepath.Join(dir, resultsFile), data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.MediaConfig{Dir: dir, TimeoutSeconds: 1}
	if _, err := NewDownloader(cfg, nil).Run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, resultsFile))
	if err != nil {
		t.Fatal(err)
	}
	var kept []DownloadResult
	if err := json.Unmarshal(data, &kept); err != nil {
		t.Fatal(err)
	}
	if len(kept) != 1 || kept[0].Filename != "pr-999-1.png" {
		t.Errorf("old records purged: %+v", kept)
	}
}

func TestDownloaderSkipsFailedFetches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.png" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/gif")
		w.Write([]byte("gif-bytes"))
	}))
	defer srv.Close()

	cfg := config.MediaConfig{Dir: t.TempDir(), TimeoutSeconds: 5}
	entries := []domain.Entry{{
		Links: []domain.Link{{Kind: domain.LinkPull, Repo: "elastic/kibana", Number: 3}},
		MediaURLs: []domain.MediaURL{
			{URL: srv.URL + "/broken.png", Kind: domain.MediaImage},
			{URL: srv.URL + "/ok.gif", Kind: domain.MediaImage},
		},
	}}

	out, err := NewDownloader(cfg, nil).Run(context.Background(), entries)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(out[0].Media) != 1 || out[0].Media[0].Filename != "pr-3-2.gif" {
		t.Errorf("failure must skip, not abort: %+v", out[0].Media)
	}
}

func TestClassifyMediaAndExtension(t *testing.T) {
	t.Parallel()

	if k := classifyMedia("https://x/clip.mp4", ""); k != domain.MediaVideo {
		t.Errorf("mp4 = %v", k)
	}
	if k := classifyMedia("https://x/blob", "video/mp4"); k != domain.MediaVideo {
		t.Errorf("content-type video = %v", k)
	}
	if k := classifyMedia("https://x/blob", "application/octet-stream"); k != domain.MediaImage {
		t.Errorf("default should be image: %v", k)
	}
	if ext := chooseExtension(domain.MediaVideo, "https://x/clip.mov"); ext != ".mov" {
		t.Errorf("mov ext = %q", ext)
	}
	if ext := chooseExtension(domain.MediaImage, "https://x/pic.jpeg"); ext != ".jpg" {
		t.Errorf("jpeg ext = %q", ext)
	}
}

func TestMappingNameCutsOnRunes(t *testing.T) {
	t.Parallel()

	d := NewDownloader(config.MediaConfig{Dir: t.TempDir(), TimeoutSeconds: 1}, nil)
	entry := &domain.Entry{
		Description: strings.Repeat("ü", 70),
		Links:       []domain.Link{{Kind: domain.LinkPull, Repo: "elastic/kibana", Number: 5}},
	}

	d.downloadEntry(context.Background(), entry)

	m, ok := d.mapping["pr-5"]
	if !ok {
		t.Fatal("mapping entry missing")
	}
	if !utf8.ValidString(m.Name) {
		t.Fatalf("mapping name is not valid UTF-8: %q", m.Name)
	}
	if n := utf8.RuneCountInString(m.Name); n != 60 {
		t.Errorf("rune count = %d, want 60", n)
	}
}
