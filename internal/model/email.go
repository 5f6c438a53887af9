package model

import (
	"strings"
	"time"
)

// EmailStatus marks whether an email record is live or soft-deleted.
type EmailStatus string

const (
	EmailStatusInbox   EmailStatus = "inbox"
	EmailStatusDeleted EmailStatus = "deleted"
)

// Unmatched is the sentinel for emails no competitor could be matched to.
const Unmatched = "unmatched"

// Email is one row of the email ledger: exactly one per stored payload file,
// regardless of whether the email ever became an Update. Stage transitions are
// forward-only; a record never regresses.
type Email struct {
	JSONFile       string      `csv:"json_file" json:"json_file"`
	FromAddress    string      `csv:"from_address" json:"from_address"`
	ToAddress      string      `csv:"to_address" json:"to_address"`
	Date           string      `csv:"date" json:"date"`
	Subject        string      `csv:"subject" json:"subject"`
	MatchedCompany string      `csv:"matched_company" json:"matched_company"`
	Injected       bool        `csv:"injected" json:"injected"`
	ReceivedAt     time.Time   `csv:"received_at" json:"received_at"`
	ProcessedAt    *time.Time  `csv:"processed_at" json:"processed_at,omitempty"`
	Status         EmailStatus `csv:"status" json:"status"`
}

// Matched reports whether the email reached the MATCHED stage.
func (e Email) Matched() bool {
	return e.MatchedCompany != "" && e.MatchedCompany != Unmatched
}

// EmailStage is the derived pipeline stage of an email record.
type EmailStage string

const (
	StageReceived EmailStage = "RECEIVED"
	StageMatched  EmailStage = "MATCHED"
	StageInjected EmailStage = "INJECTED"
)

// Stage derives the furthest stage this record has reached.
func (e Email) Stage() EmailStage {
	switch {
	case e.Injected:
		return StageInjected
	case e.Matched():
		return StageMatched
	default:
		return StageReceived
	}
}

// Sender is one row of the sender ledger: aggregate counters per unique
// from-address, exactly recomputable from the non-deleted email records.
type Sender struct {
	FromAddress     string    `csv:"from_address" json:"from_address"`
	EmailsReceived  int       `csv:"emails_received" json:"emails_received"`
	EmailsProcessed int       `csv:"emails_processed" json:"emails_processed"`
	EmailsInjected  int       `csv:"emails_injected" json:"emails_injected"`
	AssignedCompany string    `csv:"assigned_company" json:"assigned_company"`
	LastSeen        time.Time `csv:"last_seen" json:"last_seen"`
}

// Payload is the inbound webhook email JSON (CloudMailin-style).
type Payload struct {
	Headers  map[string]any `json:"headers"`
	Envelope Envelope       `json:"envelope"`
	Plain    string         `json:"plain"`
	HTML     string         `json:"html"`
	Meta     *PayloadMeta   `json:"_webhook_metadata,omitempty"`
}

// Envelope carries the SMTP envelope addresses.
type Envelope struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PayloadMeta is attached by the webhook when the payload is stored.
type PayloadMeta struct {
	ReceivedAt string `json:"received_at"`
	SourceIP   string `json:"source_ip"`
	Filename   string `json:"filename"`
}

// Header does a case-insensitive header lookup, treating underscores and
// hyphens as equivalent (providers disagree on message_id vs Message-ID).
// Multi-valued headers return the first value.
func (p Payload) Header(name string) string {
	name = strings.ReplaceAll(name, "_", "-")
	for k, v := range p.Headers {
		if !strings.EqualFold(strings.ReplaceAll(k, "_", "-"), name) {
			continue
		}
		switch val := v.(type) {
		case string:
			return val
		case []any:
			if len(val) > 0 {
				if s, ok := val[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
