package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/competitor-agent/internal/crawl"
	"github.com/sells-group/competitor-agent/internal/extract"
	"github.com/sells-group/competitor-agent/internal/identity"
	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/model"
)

// Scanner runs the site-scan job: crawl every configured competitor,
// extract article-like pages, and append the new ones to the update ledger.
type Scanner struct {
	frontier    *crawl.Frontier
	updates     *ledger.Updates
	competitors []model.Competitor
	concurrency int
	now         func() time.Time
}

// NewScanner creates a Scanner. concurrency bounds how many competitors are
// crawled at once; politeness within one site is the frontier's job.
func NewScanner(frontier *crawl.Frontier, updates *ledger.Updates, competitors []model.Competitor, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Scanner{
		frontier:    frontier,
		updates:     updates,
		competitors: competitors,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run executes one scan across all competitors. It always returns a summary,
// even when every site failed; the error is reserved for ledger I/O and
// cancellation.
func (s *Scanner) Run(ctx context.Context) (model.ScanSummary, error) {
	summary := model.ScanSummary{
		PerCompany: make(map[string]int),
		Started:    s.now().UTC(),
	}

	existing, err := s.updates.IDs()
	if err != nil {
		return summary, err
	}

	var (
		mu       sync.Mutex
		allPages []model.Page
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, comp := range s.competitors {
		g.Go(func() error {
			pages, stats, err := s.frontier.Crawl(gctx, comp)
			mu.Lock()
			defer mu.Unlock()
			summary.Errors += stats.Failed
			if err != nil {
				return err
			}
			allPages = append(allPages, pages...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		summary.Duration = s.now().UTC().Sub(summary.Started)
		return summary, err
	}

	// Dedup both against the ledger and within this run: two URL variants of
	// one article collapse to the first seen.
	seen := make(map[string]bool)
	var fresh []model.Update
	collected := s.now().UTC()
	for _, page := range allPages {
		id := identity.PageID(page.Company, page.URL)
		if existing[id] || seen[id] {
			summary.Duplicates++
			continue
		}
		seen[id] = true

		art := extract.Article(page.Company, identity.NormalizeURL(page.URL), page.HTML)
		if strings.TrimSpace(art.CleanText) == "" {
			zap.L().Debug("scan: dropping page with empty body",
				zap.String("company", page.Company),
				zap.String("url", page.URL),
			)
			summary.Errors++
			continue
		}

		fresh = append(fresh, model.Update{
			ID:          id,
			Company:     art.Company,
			SourceURL:   art.SourceURL,
			Title:       art.Title,
			PublishedAt: art.PublishedAt,
			CollectedAt: collected,
			CleanText:   art.CleanText,
		})
		summary.New++
		summary.PerCompany[page.Company]++
	}

	if len(fresh) > 0 {
		if err := s.updates.Append(fresh...); err != nil {
			summary.Duration = s.now().UTC().Sub(summary.Started)
			return summary, err
		}
	}

	summary.Duration = s.now().UTC().Sub(summary.Started)
	zap.L().Info("scan: run complete",
		zap.Int("new", summary.New),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}
