package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/identity"
	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/model"
)

// MergeResult reports what a batch merge changed.
type MergeResult struct {
	Added    int
	Replaced int
	Kept     int
}

// MergeUpdates reconciles an incoming batch against existing ledger rows.
// Collisions on ID keep the row with the more recent reference date under
// the given policy; ties keep the existing row. Enrichment is never lost: a
// winner with blank enrichment fields inherits the loser's non-blank ones.
func MergeUpdates(existing, incoming []model.Update, policy model.RefDatePolicy) ([]model.Update, MergeResult) {
	var result MergeResult

	merged := make([]model.Update, len(existing))
	copy(merged, existing)
	byID := make(map[string]int, len(merged))
	for i, row := range merged {
		byID[row.ID] = i
	}

	for _, in := range incoming {
		if in.ID == "" {
			in.ID = recomputeID(in)
		}
		i, ok := byID[in.ID]
		if !ok {
			byID[in.ID] = len(merged)
			merged = append(merged, in)
			result.Added++
			continue
		}

		cur := merged[i]
		if in.RefTime(policy).After(cur.RefTime(policy)) {
			merged[i] = inheritEnrichment(in, cur)
			result.Replaced++
		} else {
			merged[i] = inheritEnrichment(cur, in)
			result.Kept++
		}
	}

	return merged, result
}

// recomputeID restores the identity of hand-assembled batch rows that carry
// no id. Email-origin rows embed their message-id in the source URL.
func recomputeID(u model.Update) string {
	if msgID, ok := strings.CutPrefix(u.SourceURL, emailScheme); ok {
		return identity.EmailID(u.Company, msgID)
	}
	return identity.PageID(u.Company, u.SourceURL)
}

// inheritEnrichment fills winner's blank enrichment fields from loser.
func inheritEnrichment(winner, loser model.Update) model.Update {
	if winner.Summary == "" {
		winner.Summary = loser.Summary
	}
	if winner.Category == "" {
		winner.Category = loser.Category
	}
	if winner.Impact == "" {
		winner.Impact = loser.Impact
	}
	return winner
}

// MergeBatch merges the rows of another update CSV into the canonical
// ledger and rewrites it atomically.
func MergeBatch(canonical *ledger.Updates, batchPath string, policy model.RefDatePolicy) (MergeResult, error) {
	existing, err := canonical.Load()
	if err != nil {
		return MergeResult{}, err
	}

	incoming, err := ledger.NewUpdates(batchPath).Load()
	if err != nil {
		return MergeResult{}, err
	}

	merged, result := MergeUpdates(existing, incoming, policy)
	if err := canonical.Rewrite(merged); err != nil {
		return result, err
	}

	zap.L().Info("merge: batch merged",
		zap.String("batch", batchPath),
		zap.Int("added", result.Added),
		zap.Int("replaced", result.Replaced),
		zap.Int("kept", result.Kept),
	)
	return result, nil
}
