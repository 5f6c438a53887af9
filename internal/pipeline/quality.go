package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/competitor-agent/internal/config"
	"github.com/sells-group/competitor-agent/internal/extract"
	"github.com/sells-group/competitor-agent/pkg/anthropic"
)

// QualityGate filters matched emails before injection. Unlike the matcher it
// is fail-open: an oracle failure accepts the email, because dropping real
// intel is worse than letting a newsletter through.
type QualityGate struct {
	client anthropic.Client
	model  string
	prompt config.PromptTemplate
}

// NewQualityGate creates a QualityGate.
func NewQualityGate(client anthropic.Client, aiModel string, prompt config.PromptTemplate) *QualityGate {
	return &QualityGate{client: client, model: aiModel, prompt: prompt}
}

// Accept reports whether a matched email should be injected into the update
// ledger. Only an explicit REJECT from the oracle keeps it out.
func (g *QualityGate) Accept(ctx context.Context, f extract.EmailFields, body string) bool {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 16,
		System:    g.prompt.System,
		Messages: []anthropic.Message{{
			Role: "user",
			Content: renderPrompt(g.prompt.User, map[string]string{
				"from_address": f.FromAddress,
				"subject":      f.Subject,
				"body_preview": preview(body, 1000),
			}),
		}},
	})
	if err != nil {
		zap.L().Warn("quality: oracle call failed, accepting email",
			zap.String("from", f.FromAddress),
			zap.Error(err),
		)
		return true
	}
	resp.Usage.LogCost(g.model, "email_quality")

	answer := strings.ToUpper(strings.TrimSpace(extractText(resp)))
	return !strings.HasPrefix(answer, "REJECT")
}
