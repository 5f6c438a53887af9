package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/extract"
	"github.com/sells-group/competitor-agent/internal/identity"
	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/model"
)

// ProcessedDirName is the subdirectory emails are moved to once they reach a
// terminal outcome.
const ProcessedDirName = "processed"

// emailScheme prefixes the synthetic source URL of injected emails.
const emailScheme = "email://"

// EmailSourceURL builds the synthetic source URL for an injected email.
func EmailSourceURL(messageID string) string {
	return emailScheme + messageID
}

// Outcome classifies what processing did with one email file.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInjected  Outcome = "injected"
)

// Processor drives stored email payloads through the match, quality, and
// injection stages, keeping the email and sender ledgers in step at every
// transition.
type Processor struct {
	emailsDir string
	emails    *ledger.Emails
	senders   *ledger.Senders
	updates   *ledger.Updates
	matcher   *Matcher
	gate      *QualityGate
	now       func() time.Time
}

// NewProcessor creates a Processor over the stored-payload directory.
func NewProcessor(emailsDir string, emails *ledger.Emails, senders *ledger.Senders, updates *ledger.Updates, matcher *Matcher, gate *QualityGate) *Processor {
	return &Processor{
		emailsDir: emailsDir,
		emails:    emails,
		senders:   senders,
		updates:   updates,
		matcher:   matcher,
		gate:      gate,
		now:       time.Now,
	}
}

// unsafeFilenameChars covers path separators and control characters that may
// not appear in a stored payload filename.
var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// storedFileStem derives the filename stem from a message-id. Emails without
// one get a random stem so concurrent arrivals cannot collide.
func storedFileStem(messageID string) string {
	messageID = strings.Trim(strings.TrimSpace(messageID), "<>")
	if messageID == "" {
		return uuid.NewString()[:8]
	}
	stem := unsafeFilenameChars.ReplaceAllString(strings.ReplaceAll(messageID, "@", "_at_"), "_")
	if len(stem) > 100 {
		stem = stem[:100]
	}
	return stem
}

// ErrMalformedPayload marks inbound bodies that are not valid payload JSON.
var ErrMalformedPayload = eris.New("process: malformed payload")

// Receive stores an inbound webhook payload in the inbox and records its
// arrival in the email and sender ledgers. Returns the stored filename.
// Matching and injection happen later, in ProcessDir.
func (p *Processor) Receive(raw []byte, sourceIP string) (string, error) {
	var payload model.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", eris.Wrap(ErrMalformedPayload, err.Error())
	}

	now := p.now().UTC()
	name := fmt.Sprintf("%s-%s.json", storedFileStem(payload.Header("Message-ID")), now.Format("20060102_150405.000000"))
	payload.Meta = &model.PayloadMeta{
		ReceivedAt: now.Format(time.RFC3339),
		SourceIP:   sourceIP,
		Filename:   name,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "process: marshal payload")
	}
	if err := ledger.WriteAtomic(filepath.Join(p.emailsDir, name), data); err != nil {
		return "", err
	}

	fields := extract.Fields(payload, name)
	rec := model.Email{
		JSONFile:    name,
		FromAddress: fields.FromAddress,
		ToAddress:   fields.ToAddress,
		Date:        fields.Date,
		Subject:     fields.Subject,
		ReceivedAt:  now,
		Status:      model.EmailStatusInbox,
	}
	if err := p.emails.Append(rec); err != nil {
		return "", err
	}
	if err := p.senders.RecordReceived(fields.FromAddress, now); err != nil {
		return "", err
	}

	zap.L().Info("process: email received",
		zap.String("file", name),
		zap.String("from", fields.FromAddress),
		zap.String("subject", fields.Subject),
	)
	return name, nil
}

// ProcessDir runs every pending payload file in the inbox through the
// pipeline. Individual file failures are logged and counted, never fatal.
func (p *Processor) ProcessDir(ctx context.Context) (model.EmailRunSummary, error) {
	var summary model.EmailRunSummary

	entries, err := os.ReadDir(p.emailsDir)
	if os.IsNotExist(err) {
		return summary, nil
	}
	if err != nil {
		return summary, eris.Wrapf(err, "process: read dir %s", p.emailsDir)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Files++

		outcome, err := p.ProcessFile(ctx, name)
		if err != nil {
			zap.L().Error("process: email failed",
				zap.String("file", name),
				zap.Error(err),
			)
			summary.Skipped++
			continue
		}

		switch outcome {
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeNoMatch:
			summary.NoMatch++
		case OutcomeRejected:
			summary.Rejected++
		case OutcomeDuplicate:
			summary.Duplicate++
		case OutcomeInjected:
			summary.Injected++
		}
	}

	zap.L().Info("process: run complete",
		zap.Int("files", summary.Files),
		zap.Int("injected", summary.Injected),
		zap.Int("duplicates", summary.Duplicate),
		zap.Int("no_match", summary.NoMatch),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// ProcessFile runs one stored payload through the stages. Re-running a file
// resumes from its recorded stage; completed emails are skipped outright.
func (p *Processor) ProcessFile(ctx context.Context, name string) (Outcome, error) {
	payload, err := p.readPayload(filepath.Join(p.emailsDir, name))
	if err != nil {
		return "", err
	}

	fields := extract.Fields(*payload, name)
	body := extract.BodyText(*payload)

	rec, err := p.emails.Get(name)
	if err != nil {
		return "", err
	}
	if rec != nil && rec.ProcessedAt != nil {
		return OutcomeSkipped, nil
	}

	if rec == nil {
		rec = &model.Email{
			JSONFile:    name,
			FromAddress: fields.FromAddress,
			ToAddress:   fields.ToAddress,
			Date:        fields.Date,
			Subject:     fields.Subject,
			ReceivedAt:  p.receivedAt(payload),
			Status:      model.EmailStatusInbox,
		}
		if err := p.emails.Append(*rec); err != nil {
			return "", err
		}
		if err := p.senders.RecordReceived(fields.FromAddress, rec.ReceivedAt); err != nil {
			return "", err
		}
	}

	// Matching. A prior real match is reused so a rerun cannot regress it,
	// and a prior no-match is never re-oracled: only an operator assignment
	// can revive it on a later run.
	company := rec.MatchedCompany
	switch company {
	case "":
		assigned, err := p.senders.AssignedCompany(fields.FromAddress)
		if err != nil {
			return "", err
		}
		company = p.matcher.Match(ctx, assigned, fields, body)
		if err := p.emails.MarkMatched(name, company); err != nil {
			return "", err
		}
	case model.Unmatched:
		assigned, err := p.senders.AssignedCompany(fields.FromAddress)
		if err != nil {
			return "", err
		}
		if assigned == "" {
			return OutcomeNoMatch, nil
		}
		company = assigned
		if err := p.emails.MarkMatched(name, company); err != nil {
			return "", err
		}
	}
	if company == model.Unmatched {
		// Left in the inbox for manual assignment.
		return OutcomeNoMatch, nil
	}

	if !p.gate.Accept(ctx, fields, body) {
		if err := p.finish(name, fields.FromAddress, false); err != nil {
			return "", err
		}
		return OutcomeRejected, p.moveToProcessed(name)
	}

	id := identity.EmailID(company, fields.MessageID)
	existing, err := p.updates.IDs()
	if err != nil {
		return "", err
	}
	if existing[id] {
		if err := p.finish(name, fields.FromAddress, false); err != nil {
			return "", err
		}
		return OutcomeDuplicate, p.moveToProcessed(name)
	}

	update := model.Update{
		ID:          id,
		Company:     company,
		SourceURL:   EmailSourceURL(fields.MessageID),
		Title:       fields.Subject,
		PublishedAt: parseEmailDate(fields.Date),
		CollectedAt: p.now().UTC(),
		CleanText:   body,
	}
	if update.Title == "" {
		update.Title = extract.Untitled
	}
	if err := p.updates.Append(update); err != nil {
		return "", err
	}

	if err := p.finish(name, fields.FromAddress, true); err != nil {
		return "", err
	}
	return OutcomeInjected, p.moveToProcessed(name)
}

// finish applies the terminal email and sender transitions. Sender counters
// are bumped here, exactly when processed_at is stamped on the email row, so
// the live counts always agree with a Rebuild over the stored rows.
func (p *Processor) finish(name, fromAddress string, injected bool) error {
	at := p.now().UTC()
	if injected {
		if err := p.emails.MarkInjected(name, at); err != nil {
			return err
		}
	} else if err := p.emails.MarkProcessed(name, at); err != nil {
		return err
	}
	if err := p.senders.RecordProcessed(fromAddress); err != nil {
		return err
	}
	if injected {
		return p.senders.RecordInjected(fromAddress)
	}
	return nil
}

func (p *Processor) moveToProcessed(name string) error {
	dst := filepath.Join(p.emailsDir, ProcessedDirName)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return eris.Wrap(err, "process: mkdir processed")
	}
	if err := os.Rename(filepath.Join(p.emailsDir, name), filepath.Join(dst, name)); err != nil {
		return eris.Wrapf(err, "process: move %s", name)
	}
	return nil
}

func (p *Processor) readPayload(path string) (*model.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "process: read %s", path)
	}
	var payload model.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, eris.Wrapf(err, "process: parse %s", path)
	}
	return &payload, nil
}

func (p *Processor) receivedAt(payload *model.Payload) time.Time {
	if payload.Meta != nil {
		if t, err := time.Parse(time.RFC3339, payload.Meta.ReceivedAt); err == nil {
			return t
		}
	}
	return p.now().UTC()
}

// parseEmailDate parses an RFC 5322 Date header. Unparseable dates yield
// nil, same as a dateless article.
func parseEmailDate(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		return nil
	}
	return &t
}

// DeleteEmail soft-deletes an email record, reverses its sender counters,
// and removes any update row it injected. The payload file itself stays on
// disk.
func (p *Processor) DeleteEmail(name string) error {
	rec, err := p.emails.Get(name)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Errorf("process: no email record for %s", name)
	}
	if rec.Status == model.EmailStatusDeleted {
		return eris.Errorf("process: %s is already deleted", name)
	}

	if rec.Injected {
		if payload, err := p.findPayload(name); err != nil {
			zap.L().Warn("process: payload unreadable, injected update left in ledger",
				zap.String("file", name),
				zap.Error(err),
			)
		} else {
			fields := extract.Fields(*payload, name)
			removed, err := p.updates.RemoveBySourceURL(EmailSourceURL(fields.MessageID))
			if err != nil {
				return err
			}
			zap.L().Info("process: removed injected updates",
				zap.String("file", name),
				zap.Int("removed", removed),
			)
		}
	}

	if err := p.emails.MarkDeleted(name); err != nil {
		return err
	}
	return p.senders.DecrementFor(*rec)
}

// findPayload locates a stored payload in the inbox or the processed
// subdirectory.
func (p *Processor) findPayload(name string) (*model.Payload, error) {
	payload, err := p.readPayload(filepath.Join(p.emailsDir, name))
	if err == nil {
		return payload, nil
	}
	return p.readPayload(filepath.Join(p.emailsDir, ProcessedDirName, name))
}
