package google

import (
	"encoding/json"
	"fmt"

	"github.com/blixt/calendar-assistant/llm"
)

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type part struct {
	Text             *string           `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

func textPart(text string) part {
	return part{Text: &text}
}

type parts []part

func (p parts) MarshalJSON() ([]byte, error) {
	// If there's just one part, don't wrap it in an array.
	if len(p) == 1 {
		return json.Marshal(p[0])
	}
	return json.Marshal([]part(p))
}

func (p *parts) UnmarshalJSON(data []byte) error {
	// Try to unmarshal data as a single part first.
	var pp part
	if err := json.Unmarshal(data, &pp); err == nil {
		*p = parts{pp}
		return nil
	}
	var value []part
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*p = parts(value)
	return nil
}

type message struct {
	Role  string `json:"role"`
	Parts parts  `json:"parts"`
}

// createFunctionResponse wraps the tool output in an object, since Gemini
// rejects function responses that aren't JSON objects.
func createFunctionResponse(name, content string) (*functionResponse, error) {
	var obj map[string]any
	if json.Unmarshal([]byte(content), &obj) == nil {
		return &functionResponse{Name: name, Response: json.RawMessage(content)}, nil
	}
	var value any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		value = content
	}
	data, err := json.Marshal(map[string]any{"result": value})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal function response: %w", err)
	}
	return &functionResponse{Name: name, Response: data}, nil
}

func messageFromLLM(m llm.Message, answered map[string]bool) (message, error) {
	switch m.Role {
	case llm.RoleTool:
		name := m.Name
		if name == "" {
			name = m.ToolCallID
		}
		resp, err := createFunctionResponse(name, m.Content)
		if err != nil {
			return message{}, err
		}
		return message{Role: "user", Parts: parts{{FunctionResponse: resp}}}, nil
	case llm.RoleFunction:
		return message{Role: "user", Parts: parts{textPart(m.Content)}}, nil
	case llm.RoleAssistant:
		var p parts
		if m.Content != "" {
			p = append(p, textPart(m.Content))
		}
		for _, tc := range m.ToolCalls {
			if !answered[tc.ID] {
				continue
			}
			p = append(p, part{FunctionCall: &functionCall{Name: tc.Name, Args: tc.Arguments}})
		}
		if len(p) == 0 {
			p = parts{textPart("")}
		}
		return message{Role: "model", Parts: p}, nil
	default:
		return message{Role: m.Role, Parts: parts{textPart(m.Content)}}, nil
	}
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      candidateContent `json:"content"`
	FinishReason string           `json:"finishReason,omitempty"`
}

type candidateContent struct {
	Role  string `json:"role"`
	Parts parts  `json:"parts"`
}
