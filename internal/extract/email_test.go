package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/competitor-agent/internal/model"
)

func TestFieldsPrefersEnvelope(t *testing.T) {
	p := model.Payload{
		Envelope: model.Envelope{From: "news@clubco.example", To: "intake@ours.example"},
		Headers: map[string]any{
			"From":       `"ClubCo News" <other@clubco.example>`,
			"Subject":    "March product update",
			"Date":       "Tue, 10 Mar 2026 09:00:00 +0000",
			"Message-ID": "<abc123@clubco.example>",
		},
	}

	f := Fields(p, "fallback.json")
	assert.Equal(t, "news@clubco.example", f.FromAddress)
	assert.Equal(t, "intake@ours.example", f.ToAddress)
	assert.Equal(t, "March product update", f.Subject)
	assert.Equal(t, "<abc123@clubco.example>", f.MessageID)
}

func TestFieldsHeaderFallbacks(t *testing.T) {
	p := model.Payload{
		Headers: map[string]any{
			"from": `"ClubCo News" <News@ClubCo.example>`,
			"to":   "intake@ours.example",
		},
	}

	f := Fields(p, "20260310_090000_ab12cd34.json")
	assert.Equal(t, "news@clubco.example", f.FromAddress)
	assert.Equal(t, "intake@ours.example", f.ToAddress)
	assert.Equal(t, "20260310_090000_ab12cd34.json", f.MessageID)
}

func TestFieldsSnakeCaseMessageID(t *testing.T) {
	p := model.Payload{
		Headers: map[string]any{"message_id": "<m@x.example>"},
	}

	f := Fields(p, "x.json")
	assert.Equal(t, "<m@x.example>", f.MessageID)
}

func TestFieldsMultiValuedHeader(t *testing.T) {
	p := model.Payload{
		Headers: map[string]any{
			"Subject": []any{"first subject", "second subject"},
		},
	}

	f := Fields(p, "x.json")
	assert.Equal(t, "first subject", f.Subject)
}

func TestBodyTextPrefersPlain(t *testing.T) {
	p := model.Payload{
		Plain: "plain body wins",
		HTML:  "<p>html body</p>",
	}
	assert.Equal(t, "plain body wins", BodyText(p))
}

func TestBodyTextStripsHTML(t *testing.T) {
	p := model.Payload{
		HTML: `<html><body><style>.a{color:red}</style><p>Hello <b>there</b></p><script>x()</script></body></html>`,
	}

	got := BodyText(p)
	assert.Contains(t, got, "Hello there")
	assert.NotContains(t, got, "color:red")
	assert.NotContains(t, got, "x()")
}

func TestBodyTextEmpty(t *testing.T) {
	assert.Empty(t, BodyText(model.Payload{}))
}
