package openai

import (
	"encoding/json"

	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/tool"
)

type message struct {
	// Role can be "system", "user", "assistant", "function", or "tool".
	Role string `json:"role"`
	// Name can be used to identify different identities within the same role.
	Name string `json:"name,omitempty"`
	// Content is the message content.
	Content string `json:"content"`
	// ToolCalls is the list of tool calls that this message is part of.
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	// ToolCallID is the ID of the tool call that this message is part of.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// messageFromLLM converts a message to the wire format. Tool calls that were
// never answered by a "tool" message are dropped, since the API rejects them.
func messageFromLLM(m llm.Message, answered map[string]bool) message {
	var toolCalls []toolCall
	for _, tc := range m.ToolCalls {
		if !answered[tc.ID] {
			continue
		}
		toolCalls = append(toolCalls, toolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: toolCallFunction{Name: tc.Name, Arguments: string(tc.Arguments)},
		})
	}
	return message{
		Role:       m.Role,
		Name:       m.Name,
		Content:    m.Content,
		ToolCalls:  toolCalls,
		ToolCallID: m.ToolCallID,
	}
}

func (m message) ToLLM() llm.Message {
	toolCalls := make([]llm.ToolCall, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		toolCalls = append(toolCalls, tc.ToLLM())
	}
	if len(toolCalls) == 0 {
		toolCalls = nil
	}
	return llm.Message{
		Role:      m.Role,
		Content:   m.Content,
		ToolCalls: toolCalls,
	}
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

func (t toolCall) ToLLM() llm.ToolCall {
	args := t.Function.Arguments
	if args == "" {
		args = "{}"
	}
	return llm.ToolCall{
		ID:        t.ID,
		Name:      t.Function.Name,
		Arguments: json.RawMessage(args),
	}
}

type toolSchema struct {
	Type     string              `json:"type"`
	Function tool.FunctionSchema `json:"function"`
}

type chatCompletionChoice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatCompletion struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   usage                  `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
