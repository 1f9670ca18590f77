// Package media discovers and materializes embeddable media for entries
// that carry external links.
package media

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"whatsnewgen/internal/config"
	"whatsnewgen/internal/domain"
)

var (
	imgTagRe      = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
	markdownImgRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	bareAssetRe   = regexp.MustCompile(`https://github\.com/user-attachments/assets/[a-f0-9-]+`)
)

// HarvestBody extracts media candidates from a tracker item body via
// three independent patterns, each restricted to the trusted asset host.
// Results are deduplicated by URL in discovery order.
func HarvestBody(body, assetHost string) []domain.MediaURL {
	if body == "" {
		return nil
	}

	var out []domain.MediaURL
	seen := map[string]struct{}{}

	add := func(u string, kind domain.MediaKind) {
		if !strings.Contains(u, assetHost) {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, domain.MediaURL{URL: u, Kind: kind})
	}

	for _, m := range imgTagRe.FindAllStringSubmatch(body, -1) {
		add(m[1], domain.MediaImage)
	}
	for _, m := range markdownImgRe.FindAllStringSubmatch(body, -1) {
		add(m[1], domain.MediaImage)
	}
	// Bare attachment URLs may be videos; the kind is settled at download
	// time from the content type.
	for _, u := range bareAssetRe.FindAllString(body, -1) {
		add(u, domain.MediaUnknown)
	}
	return out
}

var rasterExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// DocImages extracts screenshot-sized raster images from a documentation
// page, filtering out page chrome by filename substring and declared
// dimensions.
func DocImages(html, pageURL string, cfg config.MediaConfig) ([]domain.MediaURL, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse doc page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var out []domain.MediaURL
	seen := map[string]struct{}{}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref).String()
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}

		lower := strings.ToLower(src)
		for _, p := range cfg.SkipPatterns {
			if strings.Contains(lower, p) {
				return
			}
		}
		if dimensionBelow(sel, "width", cfg.MinDimension) ||
			dimensionBelow(sel, "height", cfg.MinDimension) {
			return
		}
		for _, ext := range rasterExtensions {
			if strings.Contains(lower, ext) {
				out = append(out, domain.MediaURL{URL: resolved, Kind: domain.MediaImage})
				return
			}
		}
	})
	return out, nil
}

func dimensionBelow(sel *goquery.Selection, attr string, min int) bool {
	v, ok := sel.Attr(attr)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	return err == nil && n < min
}
