// Package crawl implements the per-competitor page discovery frontier: a
// bounded breadth-first walk from each competitor's seed URLs with a tiered
// fetch path and politeness delays.
package crawl

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/pkg/renderer"
)

// FetchOptions configures the tiered fetcher.
type FetchOptions struct {
	UserAgent string
	Timeout   time.Duration
	// MinContentBytes is the plain-GET usefulness threshold. Bodies at or
	// below it are assumed to be JavaScript shells and go to the renderer.
	MinContentBytes int
}

// Fetcher retrieves page HTML. A plain GET is tried first; thin or failed
// responses fall back to headless rendering when a renderer is configured.
type Fetcher struct {
	client   *http.Client
	renderer renderer.Client
	opts     FetchOptions
}

// NewFetcher creates a Fetcher. rc may be nil to disable the rendering tier.
func NewFetcher(opts FetchOptions, rc renderer.Client) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "CompetitorAgent/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MinContentBytes == 0 {
		opts.MinContentBytes = 500
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		renderer: rc,
		opts:     opts,
	}
}

// Fetch returns page HTML and whether the fetch produced usable content.
// A page that fails both tiers is a miss, not an error: the frontier records
// it and moves on.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, bool) {
	html, ok := f.plainGet(ctx, pageURL)
	if ok {
		return html, true
	}

	if f.renderer == nil {
		return "", false
	}

	rendered, err := f.renderer.Render(ctx, pageURL)
	if err != nil {
		zap.L().Warn("crawl: render fallback failed",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return "", false
	}
	// The usefulness threshold applies to rendered output too: a renderer
	// that returns a bare shell is still a miss.
	if len(rendered) <= f.opts.MinContentBytes {
		return "", false
	}
	return rendered, true
}

// plainGet is the first tier: a direct GET accepted only when it returns
// 200, an HTML content type, and a body above the usefulness threshold.
func (f *Fetcher) plainGet(ctx context.Context, pageURL string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		zap.L().Debug("crawl: plain GET failed",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}
	if len(body) <= f.opts.MinContentBytes {
		zap.L().Debug("crawl: body below content threshold, deferring to renderer",
			zap.String("url", pageURL),
			zap.Int("bytes", len(body)),
		)
		return "", false
	}

	return string(body), true
}
