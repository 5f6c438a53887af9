package main

import (
	"time"

	"github.com/sells-group/competitor-agent/internal/crawl"
	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/pipeline"
	"github.com/sells-group/competitor-agent/pkg/anthropic"
	"github.com/sells-group/competitor-agent/pkg/renderer"
)

// pipelineEnv bundles the wired pipeline components shared by the commands.
type pipelineEnv struct {
	Updates   *ledger.Updates
	Emails    *ledger.Emails
	Senders   *ledger.Senders
	Processor *pipeline.Processor
	Scanner   *pipeline.Scanner
	Enricher  *pipeline.Enricher
}

// initPipeline validates the config and wires the ledgers and pipeline stages.
func initPipeline() (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &pipelineEnv{
		Updates: ledger.NewUpdates(cfg.Data.UpdatesCSV()),
		Emails:  ledger.NewEmails(cfg.Data.EmailsCSV()),
		Senders: ledger.NewSenders(cfg.Data.SendersCSV()),
	}

	var rc renderer.Client
	if cfg.Renderer.BaseURL != "" {
		rc = renderer.NewClient(cfg.Renderer.BaseURL,
			renderer.WithSettleDelay(time.Duration(cfg.Renderer.SettleMillis)*time.Millisecond),
		)
	}

	frontier := crawl.NewFrontier(
		crawl.NewFetcher(crawl.FetchOptions{
			UserAgent:       cfg.Crawl.UserAgent,
			Timeout:         time.Duration(cfg.Crawl.RequestTimeoutSecs) * time.Second,
			MinContentBytes: cfg.Crawl.MinContentBytes,
		}, rc),
		crawl.NewLinkFinder(cfg.Crawl.ArticleMarkers),
		crawl.FrontierOptions{
			MaxPagesPerSite:  cfg.Crawl.MaxPagesPerSite,
			WithinDomainOnly: cfg.Crawl.WithinDomainOnly,
			Delay:            time.Duration(cfg.Crawl.DelayMillis) * time.Millisecond,
		},
	)
	e.Scanner = pipeline.NewScanner(frontier, e.Updates, cfg.Competitors, cfg.Crawl.Concurrency)

	ai := anthropic.NewClient(cfg.Anthropic.Key)
	matcher := pipeline.NewMatcher(ai, cfg.Anthropic.Model, cfg.Prompts.EmailMatch, cfg.CompetitorNames())
	gate := pipeline.NewQualityGate(ai, cfg.Anthropic.Model, cfg.Prompts.EmailQuality)
	e.Processor = pipeline.NewProcessor(cfg.Data.EmailsDir(), e.Emails, e.Senders, e.Updates, matcher, gate)

	classifier := pipeline.NewClassifier(ai, cfg.Anthropic.Model, cfg.Classify)
	e.Enricher = pipeline.NewEnricher(classifier, e.Updates, cfg.Classify)

	return e, nil
}
