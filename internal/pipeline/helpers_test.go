package pipeline

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/competitor-agent/pkg/anthropic"
)

func TestCleanJSONFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, cleanJSON("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, cleanJSON("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, cleanJSON(`Here you go: {"a": 1} hope that helps`))
	assert.Equal(t, `{"a": 1}`, cleanJSON(`{"a": 1}`))
}

func TestExtractTextJoinsBlocks(t *testing.T) {
	resp := &anthropic.MessageResponse{Content: []anthropic.ContentBlock{
		{Type: "text", Text: "first"},
		{Type: "text", Text: "second"},
	}}
	assert.Equal(t, "first\nsecond", extractText(resp))
	assert.Empty(t, extractText(nil))
}

func TestRenderPrompt(t *testing.T) {
	got := renderPrompt("From {from_address}: {subject}", map[string]string{
		"from_address": "a@x",
		"subject":      "hello",
	})
	assert.Equal(t, "From a@x: hello", got)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", preview("abc", 10))
	assert.Equal(t, "ab", preview("abcdef", 2))
}

func TestPreviewRuneBoundary(t *testing.T) {
	// "é" is two bytes; a cut inside it must back up to the boundary.
	assert.Equal(t, "caf", preview("café", 4))
	assert.Equal(t, "café", preview("café", 5))
	assert.True(t, utf8.ValidString(preview("日本語テキスト", 7)))
}
