// Package links probes outbound URLs for unauthenticated accessibility
// and strips inaccessible anchors from rendered HTML.
package links

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"whatsnewgen/internal/config"
)

// Result is the outcome of probing one URL.
type Result struct {
	URL        string `json:"url"`
	Accessible bool   `json:"accessible"`
	Status     int    `json:"status"`
	Reason     string `json:"reason"`
}

// Validator fans link probes across a bounded worker pool.
type Validator struct {
	cfg    config.LinksConfig
	http   *http.Client
	logger *slog.Logger
}

func NewValidator(cfg config.LinksConfig, log *slog.Logger) *Validator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	return &Validator{
		cfg: cfg,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			// Redirect targets count as accessible; follow them.
		},
		logger: log,
	}
}

// Validate probes every URL concurrently and joins all results before
// returning. Result order is unspecified.
func (v *Validator) Validate(ctx context.Context, urls []string) []Result {
	if len(urls) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		results []Result
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, v.cfg.MaxWorkers)

	for _, url := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(url string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := v.Check(ctx, url)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			if v.logger != nil {
				v.logger.Debug("link checked",
					"url", url, "accessible", res.Accessible, "reason", res.Reason)
			}
		}(url)
	}
	wg.Wait()
	return results
}

// Check probes one URL, HEAD first with a GET fallback for servers that
// reject HEAD.
func (v *Validator) Check(ctx context.Context, url string) Result {
	if !strings.HasPrefix(url, "http") {
		return Result{URL: url, Accessible: true, Reason: "non-http"}
	}

	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return Result{URL: url, Accessible: false, Reason: err.Error()}
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) "+
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

		resp, err := v.http.Do(req)
		if err != nil {
			if method == http.MethodHead {
				continue
			}
			return Result{URL: url, Accessible: false, Reason: err.Error()}
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return Result{URL: url, Accessible: false, Status: resp.StatusCode,
				Reason: fmt.Sprintf("HTTP %d, requires authentication", resp.StatusCode)}
		case resp.StatusCode == http.StatusNotFound:
			return Result{URL: url, Accessible: false, Status: resp.StatusCode, Reason: "not found"}
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			return Result{URL: url, Accessible: true, Status: resp.StatusCode, Reason: "redirect"}
		case resp.StatusCode < 300:
			return Result{URL: url, Accessible: true, Status: resp.StatusCode, Reason: "ok"}
		default:
			if method == http.MethodHead {
				continue
			}
			return Result{URL: url, Accessible: false, Status: resp.StatusCode,
				Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
		}
	}
	return Result{URL: url, Accessible: false, Reason: "all methods failed"}
}

var anchorHrefRe = regexp.MustCompile(`<a\s[^>]*href="([^"]+)"[^>]*>`)

// ExtractHTMLLinks lists unique http(s) anchor targets in document order.
func ExtractHTMLLinks(html string) []string {
	var urls []string
	seen := map[string]struct{}{}
	for _, m := range anchorHrefRe.FindAllStringSubmatch(html, -1) {
		url := m[1]
		if !strings.HasPrefix(url, "http") {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	return urls
}

// RemoveLink strips anchors pointing at the URL, keeping the inner text.
func RemoveLink(html, url string) string {
	re := regexp.MustCompile(`(?s)<a\s[^>]*href="` + regexp.QuoteMeta(url) + `"[^>]*>(.*?)</a>`)
	return re.ReplaceAllString(html, "$1")
}

// CleanHTML validates every anchor target and removes the inaccessible
// ones. Returns the cleaned HTML and all probe results.
func (v *Validator) CleanHTML(ctx context.Context, html string) (string, []Result) {
	urls := ExtractHTMLLinks(html)
	results := v.Validate(ctx, urls)

	removed := 0
	for _, r := range results {
		if !r.Accessible {
			html = RemoveLink(html, r.URL)
			removed++
		}
	}
	if v.logger != nil {
		v.logger.Info("link validation complete", "checked", len(results), "removed", removed)
	}
	return html, results
}
