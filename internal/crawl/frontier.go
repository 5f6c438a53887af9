package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/competitor-agent/internal/identity"
	"github.com/sells-group/competitor-agent/internal/model"
)

// FrontierOptions bounds a per-competitor crawl.
type FrontierOptions struct {
	MaxPagesPerSite  int
	WithinDomainOnly bool
	// Delay is the politeness pause between fetches against one site.
	Delay time.Duration
}

// Frontier walks a competitor's site breadth-first from its seed URLs,
// emitting article-like pages. Each URL is visited at most once per run.
type Frontier struct {
	fetcher *Fetcher
	links   *LinkFinder
	opts    FrontierOptions
}

// NewFrontier creates a Frontier over the given fetcher and link finder.
func NewFrontier(f *Fetcher, lf *LinkFinder, opts FrontierOptions) *Frontier {
	if opts.MaxPagesPerSite == 0 {
		opts.MaxPagesPerSite = 50
	}
	if opts.Delay == 0 {
		opts.Delay = 500 * time.Millisecond
	}
	return &Frontier{fetcher: f, links: lf, opts: opts}
}

// Crawl runs the frontier for one competitor and returns the article-like
// pages it fetched. Individual page failures are counted, never fatal; the
// only error returned is context cancellation.
func (fr *Frontier) Crawl(ctx context.Context, comp model.Competitor) ([]model.Page, model.CrawlStats, error) {
	var (
		stats   model.CrawlStats
		pages   []model.Page
		queue   []string
		visited = make(map[string]bool)
	)

	for _, seed := range comp.StartURLs {
		u := identity.NormalizeURL(seed)
		if !visited[u] {
			visited[u] = true
			queue = append(queue, u)
		}
	}

	limiter := rate.NewLimiter(rate.Every(fr.opts.Delay), 1)

	for len(queue) > 0 && stats.Fetched+stats.Failed < fr.opts.MaxPagesPerSite {
		pageURL := queue[0]
		queue = queue[1:]

		if err := limiter.Wait(ctx); err != nil {
			return pages, stats, err
		}

		html, ok := fr.fetcher.Fetch(ctx, pageURL)
		if !ok {
			stats.Failed++
			zap.L().Warn("crawl: page fetch missed",
				zap.String("company", comp.Name),
				zap.String("url", pageURL),
			)
			continue
		}
		stats.Fetched++

		if fr.links.IsArticle(pageURL) {
			pages = append(pages, model.Page{Company: comp.Name, URL: pageURL, HTML: html})
			stats.Pages++
		}

		for _, link := range fr.links.Links(pageURL, html) {
			if visited[link] {
				continue
			}
			if fr.opts.WithinDomainOnly && !fr.inSeedDomains(comp, link) {
				continue
			}
			visited[link] = true
			queue = append(queue, link)
		}
	}

	zap.L().Info("crawl: frontier complete",
		zap.String("company", comp.Name),
		zap.Int("fetched", stats.Fetched),
		zap.Int("failed", stats.Failed),
		zap.Int("articles", stats.Pages),
	)

	return pages, stats, nil
}

// inSeedDomains reports whether the link's host matches any seed URL's host.
// A competitor whose seeds span hosts (say a blog subdomain and the main
// site) may be followed across all of them.
func (fr *Frontier) inSeedDomains(comp model.Competitor, link string) bool {
	for _, seed := range comp.StartURLs {
		if identity.SameHost(seed, link) {
			return true
		}
	}
	return false
}
