package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/config"
	"github.com/sells-group/competitor-agent/internal/extract"
	"github.com/sells-group/competitor-agent/internal/model"
	"github.com/sells-group/competitor-agent/pkg/anthropic"
)

// Matcher decides which competitor an inbound email belongs to. It is
// fail-closed: any oracle failure or unverifiable answer yields unmatched,
// never a guessed company.
type Matcher struct {
	client      anthropic.Client
	model       string
	prompt      config.PromptTemplate
	competitors []string
}

// NewMatcher creates a Matcher over the configured competitor list.
func NewMatcher(client anthropic.Client, aiModel string, prompt config.PromptTemplate, competitors []string) *Matcher {
	return &Matcher{
		client:      client,
		model:       aiModel,
		prompt:      prompt,
		competitors: competitors,
	}
}

// Match returns the competitor name for an email, or model.Unmatched.
// assignedCompany, when non-empty, is an operator mapping for the sender and
// bypasses the oracle entirely.
func (m *Matcher) Match(ctx context.Context, assignedCompany string, f extract.EmailFields, body string) string {
	if assignedCompany != "" {
		return assignedCompany
	}

	resp, err := m.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     m.model,
		MaxTokens: 64,
		System:    m.prompt.System,
		Messages: []anthropic.Message{{
			Role: "user",
			Content: renderPrompt(m.prompt.User, map[string]string{
				"competitors_list": strings.Join(m.competitors, "\n"),
				"from_address":     f.FromAddress,
				"subject":          f.Subject,
				"body_preview":     preview(body, 1000),
			}),
		}},
	})
	if err != nil {
		zap.L().Warn("matcher: oracle call failed, treating as unmatched",
			zap.String("from", f.FromAddress),
			zap.Error(err),
		)
		return model.Unmatched
	}
	resp.Usage.LogCost(m.model, "email_match")

	answer := strings.TrimSpace(extractText(resp))
	if answer == "" || strings.EqualFold(answer, "NONE") {
		return model.Unmatched
	}

	if name, ok := m.validate(answer); ok {
		return name
	}

	zap.L().Warn("matcher: oracle named an unknown company, treating as unmatched",
		zap.String("from", f.FromAddress),
		zap.String("answer", answer),
	)
	return model.Unmatched
}

// validate maps an oracle answer onto the configured competitor list: exact
// case-insensitive match first, then substring containment either way.
func (m *Matcher) validate(answer string) (string, bool) {
	for _, name := range m.competitors {
		if strings.EqualFold(name, answer) {
			return name, true
		}
	}
	lowerAnswer := strings.ToLower(answer)
	for _, name := range m.competitors {
		lowerName := strings.ToLower(name)
		if strings.Contains(lowerAnswer, lowerName) || strings.Contains(lowerName, lowerAnswer) {
			return name, true
		}
	}
	return "", false
}
