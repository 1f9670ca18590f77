// Package github is a thin authenticated REST client with rate-limit
// tracking and per-organization access caching.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"whatsnewgen/internal/config"
)

const defaultBaseURL = "https://api.github.com"

// TrackerItem is the subset of a pull/issue API response the pipeline
// consumes.
type TrackerItem struct {
	Body   string  `json:"body"`
	Labels []Label `json:"labels"`
}

type Label struct {
	Name string `json:"name"`
}

// Client talks to the GitHub REST API. It is not safe for concurrent
// use; the pipeline calls it from a single goroutine.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger

	remaining int
	resetAt   time.Time
	// blockedOrgs caches organizations whose resources the token cannot
	// reach. One failure blocks the whole org for the run.
	blockedOrgs map[string]struct{}

	// sleep is swapped by tests.
	sleep func(time.Duration)
}

func NewClient(cfg config.GitHubConfig, log *slog.Logger) *Client {
	base := cfg.APIBaseURL
	if base == "" {
		base = defaultBaseURL
	}
	remaining := 60
	if cfg.Token != "" {
		remaining = 5000
	}
	return &Client{
		baseURL:     strings.TrimRight(base, "/"),
		token:       cfg.Token,
		http:        &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:      log,
		remaining:   remaining,
		blockedOrgs: make(map[string]struct{}),
		sleep:       time.Sleep,
	}
}

// OrgBlocked reports whether lookups against the organization are known
// to fail with the current token.
func (c *Client) OrgBlocked(org string) bool {
	_, ok := c.blockedOrgs[org]
	return ok
}

// FetchTrackerItem gets one pull request or issue. A nil item with a nil
// error means the resource is unavailable (missing, or behind an access
// restriction) and the caller should degrade gracefully.
func (c *Client) FetchTrackerItem(ctx context.Context, repo string, number int, isPull bool) (*TrackerItem, error) {
	org, _, _ := strings.Cut(repo, "/")
	if c.OrgBlocked(org) {
		return nil, nil
	}

	kind := "issues"
	if isPull {
		kind = "pulls"
	}
	endpoint := fmt.Sprintf("/repos/%s/%s/%d", repo, kind, number)

	body, err := c.get(ctx, endpoint, org, true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var item TrackerItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return &item, nil
}

// get performs one API call, pausing when the published quota is nearly
// exhausted and retrying once after a signaled reset.
func (c *Client) get(ctx context.Context, endpoint, org string, retry bool) ([]byte, error) {
	if c.remaining <= 5 {
		if wait := time.Until(c.resetAt) + time.Second; wait > 0 {
			c.logf("rate limit low, sleeping", "remaining", c.remaining, "wait", wait)
			c.sleep(wait)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "whatsnewgen")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.trackLimits(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil

	case resp.StatusCode == http.StatusForbidden:
		text := string(body)
		if strings.Contains(text, "SAML") || strings.Contains(text, "revoked") {
			c.blockedOrgs[org] = struct{}{}
			c.logf("token lacks access to organization, skipping its lookups", "org", org)
			return nil, nil
		}
		if c.remaining > 0 {
			c.logf("forbidden with quota left", "endpoint", endpoint)
			return nil, nil
		}
		if retry {
			wait := time.Until(c.resetAt) + time.Second
			c.logf("rate limited, waiting for reset", "wait", wait)
			if wait > 0 {
				c.sleep(wait)
			}
			return c.get(ctx, endpoint, org, false)
		}
		return nil, fmt.Errorf("get %s: rate limited past reset", endpoint)

	case resp.StatusCode == http.StatusNotFound:
		c.logf("tracker item not found", "endpoint", endpoint)
		return nil, nil

	default:
		return nil, fmt.Errorf("get %s: unexpected status %d", endpoint, resp.StatusCode)
	}
}

func (c *Client) trackLimits(h http.Header) {
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.resetAt = time.Unix(sec, 0)
		}
	}
}

func (c *Client) logf(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
