package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/model"
)

// Updates is the canonical update ledger. Every mutation rewrites the whole
// file atomically; the ledger is small enough that this is the simple and
// safe option.
type Updates struct {
	path string
}

// NewUpdates creates an update ledger handle at path.
func NewUpdates(path string) *Updates {
	return &Updates{path: path}
}

// Path returns the backing file path.
func (l *Updates) Path() string { return l.path }

// Load reads every update row. A missing file is an empty ledger. Rows that
// fail to decode are skipped with a warning, so one corrupt line never takes
// the whole pipeline down.
func (l *Updates) Load() ([]model.Update, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: read %s", l.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	dec, err := newDecoder(reader)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: %s", l.path)
	}

	var rows []model.Update
	for {
		var row model.Update
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			zap.L().Warn("ledger: skipping malformed update row",
				zap.String("path", l.path),
				zap.Error(err),
			)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Rewrite replaces the ledger contents atomically.
func (l *Updates) Rewrite(rows []model.Update) error {
	if rows == nil {
		rows = []model.Update{}
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal updates")
	}
	return WriteAtomic(l.path, data)
}

// Append adds rows to the ledger. Caller is responsible for dedup; Append
// itself never drops anything.
func (l *Updates) Append(rows ...model.Update) error {
	if len(rows) == 0 {
		return nil
	}
	existing, err := l.Load()
	if err != nil {
		return err
	}
	return l.Rewrite(append(existing, rows...))
}

// IDs returns the set of update IDs currently in the ledger.
func (l *Updates) IDs() (map[string]bool, error) {
	rows, err := l.Load()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(rows))
	for _, row := range rows {
		ids[row.ID] = true
	}
	return ids, nil
}

// RemoveBySourceURL drops every row with the given source URL and returns
// how many were removed.
func (l *Updates) RemoveBySourceURL(sourceURL string) (int, error) {
	rows, err := l.Load()
	if err != nil {
		return 0, err
	}

	kept := rows[:0]
	for _, row := range rows {
		if row.SourceURL != sourceURL {
			kept = append(kept, row)
		}
	}
	removed := len(rows) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := l.Rewrite(kept); err != nil {
		return 0, err
	}
	return removed, nil
}
