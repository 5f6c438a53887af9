package model

import "time"

// Competitor is one monitored company with its crawl seed URLs.
type Competitor struct {
	Name      string   `yaml:"name" mapstructure:"name"`
	StartURLs []string `yaml:"start_urls" mapstructure:"start_urls"`
}

// Page is a fetched article-like page emitted by the crawl frontier.
type Page struct {
	Company string
	URL     string
	HTML    string
}

// Article is the normalized record extracted from a Page.
type Article struct {
	Company     string
	SourceURL   string
	Title       string
	PublishedAt *time.Time
	CleanText   string
}

// CrawlStats counts per-competitor frontier outcomes.
type CrawlStats struct {
	Fetched int
	Failed  int
	Pages   int
}

// ScanSummary is the per-run report the scan job always produces, even when
// every individual item failed.
type ScanSummary struct {
	New        int
	Duplicates int
	Errors     int
	PerCompany map[string]int
	Started    time.Time
	Duration   time.Duration
}

// EmailRunSummary reports the outcome of one email batch run.
type EmailRunSummary struct {
	Files     int
	Skipped   int
	NoMatch   int
	Rejected  int
	Duplicate int
	Injected  int
}
