package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/config"
	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/model"
	"github.com/sells-group/competitor-agent/pkg/anthropic"
)

// Enrichment is the classifier output for one update.
type Enrichment struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
	Impact   string `json:"impact"`
}

// Classifier assigns summary, category, and impact to updates. Bad oracle
// output is coerced, never propagated: the ledger only ever holds known
// categories and impact levels.
type Classifier struct {
	client anthropic.Client
	model  string
	cfg    config.ClassifyConfig
}

// NewClassifier creates a Classifier.
func NewClassifier(client anthropic.Client, aiModel string, cfg config.ClassifyConfig) *Classifier {
	return &Classifier{client: client, model: aiModel, cfg: cfg}
}

func (c *Classifier) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You classify competitor updates for a company in the %s space.\n", c.cfg.IndustryContext)
	fmt.Fprintf(&b, "Categories (choose exactly one): %s\n", strings.Join(c.cfg.Categories, ", "))
	b.WriteString("Impact levels:\n")
	fmt.Fprintf(&b, "  High: %s\n", strings.Join(c.cfg.ImpactRules.High, "; "))
	fmt.Fprintf(&b, "  Medium: %s\n", strings.Join(c.cfg.ImpactRules.Medium, "; "))
	fmt.Fprintf(&b, "  Low: %s\n", strings.Join(c.cfg.ImpactRules.Low, "; "))
	b.WriteString(`Respond with a valid JSON object: {"summary": "<1-2 sentences>", "category": "<category>", "impact": "High|Medium|Low"}`)
	return b.String()
}

// Classify enriches a single update. It never returns an error: failures
// degrade to an empty summary, the Other category, and Low impact.
func (c *Classifier) Classify(ctx context.Context, u model.Update) Enrichment {
	body := preview(u.CleanText, c.cfg.MaxBodyChars)
	prompt := fmt.Sprintf("Company: %s\nTitle: %s\n\nContent:\n%s", u.Company, u.Title, body)

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 512,
		System:    c.systemPrompt(),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("enrich: classify call failed",
			zap.String("id", u.ID),
			zap.Error(err),
		)
		return Enrichment{Category: model.CategoryOther, Impact: model.ImpactLow}
	}
	resp.Usage.LogCost(c.model, "enrich")

	var e Enrichment
	if err := json.Unmarshal([]byte(cleanJSON(extractText(resp))), &e); err != nil {
		zap.L().Warn("enrich: unparseable classifier output",
			zap.String("id", u.ID),
			zap.Error(err),
		)
		return Enrichment{Category: model.CategoryOther, Impact: model.ImpactLow}
	}

	return c.coerce(u.ID, e)
}

// coerce clamps classifier output onto the closed category and impact sets.
func (c *Classifier) coerce(id string, e Enrichment) Enrichment {
	valid := false
	for _, cat := range c.cfg.Categories {
		if strings.EqualFold(cat, e.Category) {
			e.Category = cat
			valid = true
			break
		}
	}
	if !valid {
		zap.L().Debug("enrich: coercing unknown category",
			zap.String("id", id),
			zap.String("category", e.Category),
		)
		e.Category = model.CategoryOther
	}

	switch strings.ToLower(strings.TrimSpace(e.Impact)) {
	case "high":
		e.Impact = model.ImpactHigh
	case "medium":
		e.Impact = model.ImpactMedium
	case "low":
		e.Impact = model.ImpactLow
	default:
		e.Impact = model.ImpactLow
	}

	e.Summary = strings.TrimSpace(e.Summary)
	return e
}

// EnrichResult summarizes an enrichment pass.
type EnrichResult struct {
	Considered int
	Enriched   int
}

// Enricher runs the enrichment pass over the update ledger, classifying
// rows that still miss any enrichment field.
type Enricher struct {
	classifier *Classifier
	updates    *ledger.Updates
	batchSize  int
	pause      time.Duration
}

// NewEnricher creates an Enricher.
func NewEnricher(classifier *Classifier, updates *ledger.Updates, cfg config.ClassifyConfig) *Enricher {
	return &Enricher{
		classifier: classifier,
		updates:    updates,
		batchSize:  cfg.BatchSize,
		pause:      time.Duration(cfg.SleepBetweenSecs) * time.Second,
	}
}

// Run classifies up to limit unenriched rows (limit <= 0 means all) and
// writes results back after every batch, so an interrupted pass keeps its
// completed work.
func (e *Enricher) Run(ctx context.Context, limit int) (EnrichResult, error) {
	rows, err := e.updates.Load()
	if err != nil {
		return EnrichResult{}, err
	}

	var pending []int
	for i, row := range rows {
		if !row.Enriched() {
			pending = append(pending, i)
		}
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	result := EnrichResult{Considered: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	batchSize := e.batchSize
	if batchSize <= 0 {
		batchSize = 20
	}

	for start := 0; start < len(pending); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+batchSize, len(pending))

		for _, idx := range pending[start:end] {
			enr := e.classifier.Classify(ctx, rows[idx])
			rows[idx].Summary = enr.Summary
			rows[idx].Category = enr.Category
			rows[idx].Impact = enr.Impact
			result.Enriched++
		}

		if err := e.updates.Rewrite(rows); err != nil {
			return result, err
		}
		zap.L().Info("enrich: batch written",
			zap.Int("done", result.Enriched),
			zap.Int("pending", result.Considered-result.Enriched),
		)

		if end < len(pending) && e.pause > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(e.pause):
			}
		}
	}

	return result, nil
}
