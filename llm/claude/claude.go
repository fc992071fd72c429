package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/tool"
)

type Model struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// New returns a model backed by the Messages API. Options are passed to the
// SDK client, so tests can swap the HTTP client or base URL. The SDK's
// retries are off; a failed completion fails the request.
func New(model string, opts ...option.RequestOption) *Model {
	opts = append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	return &Model{
		client:      anthropic.NewClient(opts...),
		model:       anthropic.Model(model),
		maxTokens:   4096,
		temperature: 0.1,
	}
}

func (m *Model) WithMaxTokens(maxTokens int) *Model {
	m.maxTokens = int64(maxTokens)
	return m
}

func (m *Model) WithTemperature(temperature float64) *Model {
	m.temperature = temperature
	return m
}

func (m *Model) Company() string {
	return "Anthropic"
}

func (m *Model) Generate(ctx context.Context, systemPrompt string, messages []llm.Message, tools *tool.Toolbox) (*llm.Response, error) {
	answered := llm.AnsweredToolCalls(messages)
	conv := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		conv = append(conv, messageFromLLM(msg, answered))
	}

	params := anthropic.MessageNewParams{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Messages:    conv,
		Temperature: anthropic.Float(m.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if tools != nil {
		toolParams, err := toolsFromToolbox(tools)
		if err != nil {
			return nil, err
		}
		params.Tools = toolParams
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &llm.APIError{Company: m.Company(), StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return nil, err
	}

	result := llm.Message{Role: llm.RoleAssistant}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += v.Text
		case anthropic.ToolUseBlock:
			args := json.RawMessage(v.JSON.Input.Raw())
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			result.ToolCalls = append(result.ToolCalls, llm.ToolCall{ID: v.ID, Name: v.Name, Arguments: args})
		}
	}

	return &llm.Response{
		Message: result,
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func messageFromLLM(m llm.Message, answered map[string]bool) anthropic.MessageParam {
	switch m.Role {
	case llm.RoleAssistant:
		var blocks []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			if !answered[tc.ID] {
				continue
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    tc.ID,
				Name:  tc.Name,
				Input: tc.Arguments,
			}})
		}
		if len(blocks) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(" "))
		}
		return anthropic.NewAssistantMessage(blocks...)
	case llm.RoleTool:
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
	case llm.RoleFunction:
		// The Messages API has no function role; results are handed back as text.
		return anthropic.NewUserMessage(anthropic.NewTextBlock(fmt.Sprintf("Results of %s:\n%s", m.Name, m.Content)))
	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
	}
}

func toolsFromToolbox(toolbox *tool.Toolbox) ([]anthropic.ToolUnionParam, error) {
	schemas := toolbox.Schema()
	out := make([]anthropic.ToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		var params struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
			AnyOf      []any          `json:"anyOf"`
		}
		if err := json.Unmarshal(s.Parameters, &params); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", s.Name, err)
		}
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: params.Properties,
			Required:   params.Required,
		}
		if len(params.AnyOf) > 0 {
			inputSchema.ExtraFields = map[string]any{"anyOf": params.AnyOf}
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(s.Description),
			InputSchema: inputSchema,
		}})
	}
	return out, nil
}
