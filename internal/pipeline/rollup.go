package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/model"
)

// RollupRow is one line of the quarterly activity report.
type RollupRow struct {
	Quarter    string `csv:"quarter" json:"quarter"`
	Company    string `csv:"company" json:"company"`
	Category   string `csv:"category" json:"category"`
	Count      int    `csv:"count" json:"count"`
	HighImpact int    `csv:"high_impact" json:"high_impact"`
}

// quarterOf formats a timestamp as a calendar quarter label like 2026Q1.
func quarterOf(t time.Time) string {
	return fmt.Sprintf("%dQ%d", t.Year(), (int(t.Month())-1)/3+1)
}

// Rollup aggregates updates into quarter x company x category counts.
// Updates whose reference date is missing under the policy are excluded.
// Rows come back sorted for stable output.
func Rollup(updates []model.Update, policy model.RefDatePolicy) []RollupRow {
	type key struct {
		quarter, company, category string
	}

	counts := make(map[key]*RollupRow)
	for _, u := range updates {
		ref := u.RefTime(policy)
		if ref.IsZero() {
			continue
		}
		category := u.Category
		if category == "" {
			category = model.CategoryOther
		}
		k := key{quarterOf(ref), u.Company, category}
		row, ok := counts[k]
		if !ok {
			row = &RollupRow{Quarter: k.quarter, Company: k.company, Category: k.category}
			counts[k] = row
		}
		row.Count++
		if u.Impact == model.ImpactHigh {
			row.HighImpact++
		}
	}

	rows := make([]RollupRow, 0, len(counts))
	for _, row := range counts {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Quarter != b.Quarter {
			return a.Quarter < b.Quarter
		}
		if a.Company != b.Company {
			return a.Company < b.Company
		}
		return a.Category < b.Category
	})
	return rows
}

// WriteRollup writes rollup rows as CSV to path.
func WriteRollup(path string, rows []RollupRow) error {
	if rows == nil {
		rows = []RollupRow{}
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "rollup: marshal")
	}
	return ledger.WriteAtomic(path, data)
}
