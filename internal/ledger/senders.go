package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/model"
)

// Senders is the per-sender aggregate ledger. Counters here are a cache of
// the email ledger: Rebuild recomputes them exactly from the non-deleted
// email rows.
type Senders struct {
	path string
}

// NewSenders creates a sender ledger handle at path.
func NewSenders(path string) *Senders {
	return &Senders{path: path}
}

// Load reads every sender row. Missing file means empty ledger.
func (l *Senders) Load() ([]model.Sender, error) {
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

	var rows []model.Sender
	for {
		var row model.Sender
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			zap.L().Warn("ledger: skipping malformed sender row",
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
func (l *Senders) Rewrite(rows []model.Sender) error {
	if rows == nil {
		rows = []model.Sender{}
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal senders")
	}
	return WriteAtomic(l.path, data)
}

// AssignedCompany returns the operator-assigned company for a sender, or ""
// when the sender is unknown or unassigned.
func (l *Senders) AssignedCompany(fromAddress string) (string, error) {
	rows, err := l.Load()
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if strings.EqualFold(row.FromAddress, fromAddress) {
			return row.AssignedCompany, nil
		}
	}
	return "", nil
}

// SetAssigned records an operator mapping from sender address to company.
// An empty company clears the assignment. Unknown senders get a fresh row so
// assignments can be made ahead of the first email.
func (l *Senders) SetAssigned(fromAddress, company string) error {
	rows, err := l.Load()
	if err != nil {
		return err
	}
	for i := range rows {
		if strings.EqualFold(rows[i].FromAddress, fromAddress) {
			rows[i].AssignedCompany = company
			return l.Rewrite(rows)
		}
	}
	rows = append(rows, model.Sender{
		FromAddress:     strings.ToLower(fromAddress),
		AssignedCompany: company,
	})
	return l.Rewrite(rows)
}

// RecordReceived bumps the received counter and last-seen stamp, creating
// the sender row on first contact.
func (l *Senders) RecordReceived(fromAddress string, at time.Time) error {
	return l.bump(fromAddress, func(s *model.Sender) {
		s.EmailsReceived++
		if at.After(s.LastSeen) {
			s.LastSeen = at
		}
	})
}

// RecordProcessed bumps the processed counter.
func (l *Senders) RecordProcessed(fromAddress string) error {
	return l.bump(fromAddress, func(s *model.Sender) {
		s.EmailsProcessed++
	})
}

// RecordInjected bumps the injected counter.
func (l *Senders) RecordInjected(fromAddress string) error {
	return l.bump(fromAddress, func(s *model.Sender) {
		s.EmailsInjected++
	})
}

// DecrementFor reverses a deleted email's contribution to its sender's
// counters. Counters floor at zero so a double delete cannot go negative.
func (l *Senders) DecrementFor(e model.Email) error {
	return l.bump(e.FromAddress, func(s *model.Sender) {
		s.EmailsReceived = floorDec(s.EmailsReceived)
		if e.ProcessedAt != nil {
			s.EmailsProcessed = floorDec(s.EmailsProcessed)
		}
		if e.Injected {
			s.EmailsInjected = floorDec(s.EmailsInjected)
		}
	})
}

// Rebuild recomputes every counter from the non-deleted email rows.
// Operator assignments survive the rebuild; senders with no remaining
// emails and no assignment are dropped.
func (l *Senders) Rebuild(emails []model.Email) error {
	existing, err := l.Load()
	if err != nil {
		return err
	}

	assigned := make(map[string]string)
	for _, s := range existing {
		if s.AssignedCompany != "" {
			assigned[strings.ToLower(s.FromAddress)] = s.AssignedCompany
		}
	}

	byAddr := make(map[string]*model.Sender)
	for _, e := range emails {
		if e.Status == model.EmailStatusDeleted {
			continue
		}
		addr := strings.ToLower(e.FromAddress)
		s, ok := byAddr[addr]
		if !ok {
			s = &model.Sender{FromAddress: addr}
			byAddr[addr] = s
		}
		s.EmailsReceived++
		if e.ProcessedAt != nil {
			s.EmailsProcessed++
		}
		if e.Injected {
			s.EmailsInjected++
		}
		if e.ReceivedAt.After(s.LastSeen) {
			s.LastSeen = e.ReceivedAt
		}
	}

	for addr, company := range assigned {
		s, ok := byAddr[addr]
		if !ok {
			s = &model.Sender{FromAddress: addr}
			byAddr[addr] = s
		}
		s.AssignedCompany = company
	}

	rows := make([]model.Sender, 0, len(byAddr))
	for _, s := range byAddr {
		rows = append(rows, *s)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FromAddress < rows[j].FromAddress })

	return l.Rewrite(rows)
}

func (l *Senders) bump(fromAddress string, fn func(*model.Sender)) error {
	rows, err := l.Load()
	if err != nil {
		return err
	}
	for i := range rows {
		if strings.EqualFold(rows[i].FromAddress, fromAddress) {
			fn(&rows[i])
			return l.Rewrite(rows)
		}
	}
	s := model.Sender{FromAddress: strings.ToLower(fromAddress)}
	fn(&s)
	return l.Rewrite(append(rows, s))
}

func floorDec(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}
