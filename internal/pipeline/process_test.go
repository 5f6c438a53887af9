package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-agent/internal/ledger"
	"github.com/sells-group/competitor-agent/internal/model"
	"github.com/sells-group/competitor-agent/pkg/anthropic"
)

type processorFixture struct {
	dir       string
	emails    *ledger.Emails
	senders   *ledger.Senders
	updates   *ledger.Updates
	ai        *mockAnthropicClient
	processor *Processor
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	dir := t.TempDir()
	f := &processorFixture{
		dir:     filepath.Join(dir, "emails"),
		emails:  ledger.NewEmails(filepath.Join(dir, "emails.csv")),
		senders: ledger.NewSenders(filepath.Join(dir, "email_senders.csv")),
		updates: ledger.NewUpdates(filepath.Join(dir, "updates.csv")),
		ai:      new(mockAnthropicClient),
	}
	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	matcher := NewMatcher(f.ai, "test-model", matchPrompt, []string{"ClubCo", "FitCo"})
	gate := NewQualityGate(f.ai, "test-model", qualityPrompt)
	f.processor = NewProcessor(f.dir, f.emails, f.senders, f.updates, matcher, gate)
	return f
}

// onMatch stubs the matcher oracle, distinguished from the gate by system
// prompt.
func (f *processorFixture) onMatch(answer string) *mock.Call {
	return f.ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System == matchPrompt.System
	})).Return(textResponse(answer), nil)
}

func (f *processorFixture) onGate(answer string) *mock.Call {
	return f.ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System == qualityPrompt.System
	})).Return(textResponse(answer), nil)
}

func (f *processorFixture) writePayload(t *testing.T, name, messageID string) {
	t.Helper()
	p := model.Payload{
		Headers: map[string]any{
			"Subject":    "March pricing update",
			"Date":       "Tue, 10 Mar 2026 09:00:00 +0000",
			"Message-ID": messageID,
		},
		Envelope: model.Envelope{From: "news@clubco.example", To: "intake@ours.example"},
		Plain:    "We raised prices across all plans.",
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), data, 0o644))
}

func TestProcessFileInjects(t *testing.T) {
	f := newProcessorFixture(t)
	f.onMatch("ClubCo")
	f.onGate("ACCEPT")
	f.writePayload(t, "a.json", "<m1@clubco.example>")

	outcome, err := f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInjected, outcome)

	rows, err := f.updates.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ClubCo", rows[0].Company)
	assert.Equal(t, "email://<m1@clubco.example>", rows[0].SourceURL)
	assert.Equal(t, "March pricing update", rows[0].Title)
	require.NotNil(t, rows[0].PublishedAt)

	e, err := f.emails.Get("a.json")
	require.NoError(t, err)
	assert.Equal(t, model.StageInjected, e.Stage())

	senders, err := f.senders.Load()
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Equal(t, 1, senders[0].EmailsReceived)
	assert.Equal(t, 1, senders[0].EmailsProcessed)
	assert.Equal(t, 1, senders[0].EmailsInjected)

	// Terminal outcomes move the payload out of the inbox.
	_, statErr := os.Stat(filepath.Join(f.dir, ProcessedDirName, "a.json"))
	assert.NoError(t, statErr)
}

func TestProcessDuplicateMessageID(t *testing.T) {
	f := newProcessorFixture(t)
	f.onMatch("ClubCo")
	f.onGate("ACCEPT")
	f.writePayload(t, "a.json", "<same@clubco.example>")
	f.writePayload(t, "b.json", "<same@clubco.example>")

	summary, err := f.processor.ProcessDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Injected)
	assert.Equal(t, 1, summary.Duplicate)

	rows, err := f.updates.Load()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProcessNoMatchStaysInInbox(t *testing.T) {
	f := newProcessorFixture(t)
	f.onMatch("NONE")
	f.writePayload(t, "a.json", "<m@x.example>")

	outcome, err := f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, outcome)

	_, statErr := os.Stat(filepath.Join(f.dir, "a.json"))
	assert.NoError(t, statErr)

	e, err := f.emails.Get("a.json")
	require.NoError(t, err)
	assert.Equal(t, model.Unmatched, e.MatchedCompany)
	assert.Nil(t, e.ProcessedAt)
}

func TestProcessNoMatchNeverReOracled(t *testing.T) {
	f := newProcessorFixture(t)
	f.onMatch("NONE").Once()
	f.writePayload(t, "a.json", "<m@x.example>")

	_, err := f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)

	// Rerun without an assignment: the matcher oracle is not consulted again.
	outcome, err := f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, outcome)
	f.ai.AssertNumberOfCalls(t, "CreateMessage", 1)

	// An operator assignment revives the email on the next run, still
	// without another oracle call.
	require.NoError(t, f.senders.SetAssigned("news@clubco.example", "ClubCo"))
	f.onGate("ACCEPT")
	outcome, err = f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInjected, outcome)

	matcherCalls := 0
	for _, call := range f.ai.Calls {
		if call.Arguments.Get(1).(anthropic.MessageRequest).System == matchPrompt.System {
			matcherCalls++
		}
	}
	assert.Equal(t, 1, matcherCalls)

	rows, err := f.updates.Load()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ClubCo", rows[0].Company)
}

func TestProcessAssignedSenderSkipsOracle(t *testing.T) {
	f := newProcessorFixture(t)
	require.NoError(t, f.senders.SetAssigned("news@clubco.example", "ClubCo"))
	f.onGate("ACCEPT")
	f.writePayload(t, "a.json", "<m@clubco.example>")

	outcome, err := f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInjected, outcome)

	for _, call := range f.ai.Calls {
		req := call.Arguments.Get(1).(anthropic.MessageRequest)
		assert.NotEqual(t, matchPrompt.System, req.System, "matcher oracle must not be called")
	}
}

func TestProcessRejectedByGate(t *testing.T) {
	f := newProcessorFixture(t)
	f.onMatch("ClubCo")
	f.onGate("REJECT")
	f.writePayload(t, "a.json", "<m@clubco.example>")

	outcome, err := f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	rows, err := f.updates.Load()
	require.NoError(t, err)
	assert.Empty(t, rows)

	e, err := f.emails.Get("a.json")
	require.NoError(t, err)
	assert.False(t, e.Injected)
	assert.NotNil(t, e.ProcessedAt)
}

func TestReceiveStoresPayloadAndLedgerRow(t *testing.T) {
	f := newProcessorFixture(t)
	body := `{"headers": {"Subject": "hi", "Message-ID": "<m@x>"}, "envelope": {"from": "a@x.example", "to": "b@y.example"}, "plain": "text"}`

	name, err := f.processor.Receive([]byte(body), "203.0.113.9")
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	stored, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	var payload model.Payload
	require.NoError(t, json.Unmarshal(stored, &payload))
	require.NotNil(t, payload.Meta)
	assert.Equal(t, "203.0.113.9", payload.Meta.SourceIP)
	assert.Equal(t, name, payload.Meta.Filename)

	ok, err := f.emails.Exists(name)
	require.NoError(t, err)
	assert.True(t, ok)

	senders, err := f.senders.Load()
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Equal(t, 1, senders[0].EmailsReceived)
}

func TestStoredFileStem(t *testing.T) {
	assert.Equal(t, "m_at_x.example", storedFileStem("<m@x.example>"))
	assert.Equal(t, "a_b_c", storedFileStem("a/b:c"))
	// No message-id still yields a usable stem.
	assert.NotEmpty(t, storedFileStem(""))
	assert.NotEqual(t, storedFileStem(""), storedFileStem(""))
}

func TestReceiveMalformedPayload(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.processor.Receive([]byte("{not json"), "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformedPayload))
}

func TestDeleteEmailReversesInjection(t *testing.T) {
	f := newProcessorFixture(t)
	f.onMatch("ClubCo")
	f.onGate("ACCEPT")
	f.writePayload(t, "a.json", "<m@clubco.example>")

	_, err := f.processor.ProcessFile(context.Background(), "a.json")
	require.NoError(t, err)

	require.NoError(t, f.processor.DeleteEmail("a.json"))

	rows, err := f.updates.Load()
	require.NoError(t, err)
	assert.Empty(t, rows)

	e, err := f.emails.Get("a.json")
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusDeleted, e.Status)

	senders, err := f.senders.Load()
	require.NoError(t, err)
	require.Len(t, senders, 1)
	assert.Zero(t, senders[0].EmailsReceived)
	assert.Zero(t, senders[0].EmailsInjected)

	// Double delete is refused.
	assert.Error(t, f.processor.DeleteEmail("a.json"))
}

func TestProcessDirSkipsCompleted(t *testing.T) {
	f := newProcessorFixture(t)
	f.onMatch("ClubCo")
	f.onGate("ACCEPT")
	f.writePayload(t, "a.json", "<m@clubco.example>")

	first, err := f.processor.ProcessDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Injected)

	// Second run sees an empty inbox.
	second, err := f.processor.ProcessDir(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Files)
}
