package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/model"
)

// Emails is the per-email status ledger, keyed by stored payload filename.
type Emails struct {
	path string
}

// NewEmails creates an email ledger handle at path.
func NewEmails(path string) *Emails {
	return &Emails{path: path}
}

// Load reads every email row. Missing file means empty ledger; malformed
// rows are skipped with a warning.
func (l *Emails) Load() ([]model.Email, error) {
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

	var rows []model.Email
	for {
		var row model.Email
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			zap.L().Warn("ledger: skipping malformed email row",
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
func (l *Emails) Rewrite(rows []model.Email) error {
	if rows == nil {
		rows = []model.Email{}
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal emails")
	}
	return WriteAtomic(l.path, data)
}

// Exists reports whether a record for the given payload file is present.
func (l *Emails) Exists(jsonFile string) (bool, error) {
	rows, err := l.Load()
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.JSONFile == jsonFile {
			return true, nil
		}
	}
	return false, nil
}

// Append adds a new email record. Appending a filename that already has a
// row is a caller bug surfaced as an error, since it would break the
// one-row-per-payload invariant.
func (l *Emails) Append(e model.Email) error {
	rows, err := l.Load()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.JSONFile == e.JSONFile {
			return eris.Errorf("ledger: email record already exists for %s", e.JSONFile)
		}
	}
	if e.Status == "" {
		e.Status = model.EmailStatusInbox
	}
	return l.Rewrite(append(rows, e))
}

// MarkMatched records the matcher outcome for an email. Transitions are
// forward-only: a record that already holds a real company match is never
// overwritten back to unmatched.
func (l *Emails) MarkMatched(jsonFile, company string) error {
	return l.mutate(jsonFile, func(e *model.Email) {
		if e.Matched() && (company == "" || company == model.Unmatched) {
			return
		}
		e.MatchedCompany = company
	})
}

// MarkProcessed stamps the processing time without setting the injected
// flag, for emails that completed the pipeline but added no ledger row.
func (l *Emails) MarkProcessed(jsonFile string, at time.Time) error {
	return l.mutate(jsonFile, func(e *model.Email) {
		if e.ProcessedAt == nil {
			e.ProcessedAt = &at
		}
	})
}

// MarkInjected marks an email as injected into the update ledger and stamps
// its processing time. The flag never clears.
func (l *Emails) MarkInjected(jsonFile string, at time.Time) error {
	return l.mutate(jsonFile, func(e *model.Email) {
		e.Injected = true
		e.ProcessedAt = &at
	})
}

// MarkDeleted soft-deletes an email record. The row stays for audit; only
// its status changes.
func (l *Emails) MarkDeleted(jsonFile string) error {
	return l.mutate(jsonFile, func(e *model.Email) {
		e.Status = model.EmailStatusDeleted
	})
}

// Get returns the record for a payload file, or nil when absent.
func (l *Emails) Get(jsonFile string) (*model.Email, error) {
	rows, err := l.Load()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].JSONFile == jsonFile {
			return &rows[i], nil
		}
	}
	return nil, nil
}

func (l *Emails) mutate(jsonFile string, fn func(*model.Email)) error {
	rows, err := l.Load()
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].JSONFile == jsonFile {
			fn(&rows[i])
			return l.Rewrite(rows)
		}
	}
	return eris.Errorf("ledger: no email record for %s", jsonFile)
}
