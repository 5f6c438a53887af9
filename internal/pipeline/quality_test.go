package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/competitor-agent/internal/config"
)

var qualityPrompt = config.PromptTemplate{
	System: "accept or reject",
	User:   "From: {from_address}\nSubject: {subject}\n{body_preview}",
}

func TestQualityAccept(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("ACCEPT"), nil)

	g := NewQualityGate(ai, "test-model", qualityPrompt)
	assert.True(t, g.Accept(context.Background(), testFields(), "body"))
}

func TestQualityReject(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("reject"), nil)

	g := NewQualityGate(ai, "test-model", qualityPrompt)
	assert.False(t, g.Accept(context.Background(), testFields(), "body"))
}

func TestQualityFailOpenOnError(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("api down"))

	g := NewQualityGate(ai, "test-model", qualityPrompt)
	assert.True(t, g.Accept(context.Background(), testFields(), "body"))
}

func TestQualityGarbageAnswerAccepts(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("maybe?"), nil)

	g := NewQualityGate(ai, "test-model", qualityPrompt)
	assert.True(t, g.Accept(context.Background(), testFields(), "body"))
}
