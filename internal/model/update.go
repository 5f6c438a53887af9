package model

import "time"

// Impact levels assigned by the enrichment classifier.
const (
	ImpactHigh   = "High"
	ImpactMedium = "Medium"
	ImpactLow    = "Low"
)

// CategoryOther is the fallback category for unclassifiable updates.
const CategoryOther = "Other"

// Update is one row of the canonical update ledger. IDs are a pure function
// of (company, normalized source URL) for web items and (company, message-id)
// for email items, so re-runs over the same sources are idempotent.
type Update struct {
	ID          string     `csv:"id" json:"id"`
	Company     string     `csv:"company" json:"company"`
	SourceURL   string     `csv:"source_url" json:"source_url"`
	Title       string     `csv:"title" json:"title"`
	PublishedAt *time.Time `csv:"published_at" json:"published_at,omitempty"`
	CollectedAt time.Time  `csv:"collected_at" json:"collected_at"`
	CleanText   string     `csv:"clean_text" json:"clean_text"`
	Summary     string     `csv:"summary" json:"summary,omitempty"`
	Category    string     `csv:"category" json:"category,omitempty"`
	Impact      string     `csv:"impact" json:"impact,omitempty"`
}

// Enriched reports whether all three enrichment fields are populated.
func (u Update) Enriched() bool {
	return u.Summary != "" && u.Category != "" && u.Impact != ""
}

// RefDatePolicy selects which timestamp anchors "recency" when reconciling
// duplicate rows. The source data is inconsistent about this, so it is a
// configuration choice rather than a fixed rule.
type RefDatePolicy string

const (
	RefPublishedFirst RefDatePolicy = "published_first"
	RefCollectedFirst RefDatePolicy = "collected_first"
)

// RefTime returns the row's reference timestamp under the given policy.
func (u Update) RefTime(policy RefDatePolicy) time.Time {
	if policy == RefCollectedFirst {
		if !u.CollectedAt.IsZero() {
			return u.CollectedAt
		}
		if u.PublishedAt != nil {
			return *u.PublishedAt
		}
		return time.Time{}
	}
	if u.PublishedAt != nil {
		return *u.PublishedAt
	}
	return u.CollectedAt
}
