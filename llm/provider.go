package llm

import (
	"context"

	"github.com/blixt/calendar-assistant/tool"
)

type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Response is a single completion returned by a provider.
type Response struct {
	Message Message
	Usage   Usage
}

type Provider interface {
	Company() string
	// Generate performs exactly one request to the provider. The system prompt
	// is passed separately from messages; tools is nil when no tools should be
	// offered to the model.
	Generate(ctx context.Context, systemPrompt string, messages []Message, tools *tool.Toolbox) (*Response, error)
}
