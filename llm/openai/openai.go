package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/tool"
)

const (
	// GroqBaseURL is the OpenAI-compatible endpoint of Groq, which is the
	// default backend.
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// Model talks to any OpenAI-compatible chat completions endpoint.
type Model struct {
	model       string
	apiKey      string
	baseURL     string
	company     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

func New(model string) *Model {
	return &Model{
		model:       model,
		baseURL:     GroqBaseURL,
		company:     "Groq",
		temperature: 0.1,
		maxTokens:   4096,
		httpClient:  http.DefaultClient,
	}
}

func (m *Model) WithAPIKey(apiKey string) *Model {
	m.apiKey = apiKey
	return m
}

// WithBaseURL points the model at another OpenAI-compatible server. The
// company name is only used in logs and error messages.
func (m *Model) WithBaseURL(baseURL, company string) *Model {
	m.baseURL = strings.TrimRight(baseURL, "/")
	if company != "" {
		m.company = company
	}
	return m
}

func (m *Model) WithTemperature(temperature float64) *Model {
	m.temperature = temperature
	return m
}

func (m *Model) WithMaxTokens(maxTokens int) *Model {
	m.maxTokens = maxTokens
	return m
}

func (m *Model) WithHTTPClient(client *http.Client) *Model {
	m.httpClient = client
	return m
}

func (m *Model) Company() string {
	return m.company
}

func (m *Model) Generate(ctx context.Context, systemPrompt string, messages []llm.Message, tools *tool.Toolbox) (*llm.Response, error) {
	apiMessages := make([]message, 0, len(messages)+1)
	if systemPrompt != "" {
		apiMessages = append(apiMessages, message{
			Role:    llm.RoleSystem,
			Content: systemPrompt,
		})
	}
	answered := llm.AnsweredToolCalls(messages)
	for _, msg := range messages {
		apiMessages = append(apiMessages, messageFromLLM(msg, answered))
	}

	payload := map[string]any{
		"model":       m.model,
		"messages":    apiMessages,
		"temperature": m.temperature,
		"max_tokens":  m.maxTokens,
	}

	if tools != nil {
		payload["tools"] = toolsFromToolbox(tools)
		payload["tool_choice"] = "auto"
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &llm.APIError{Company: m.company, StatusCode: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			apiErr.Message = errResp.Error.Message
		}
		return nil, apiErr
	}

	var completion chatCompletion
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if len(completion.Choices) < 1 {
		return nil, llm.ErrNoChoices
	}

	return &llm.Response{
		Message: completion.Choices[0].Message.ToLLM(),
		Usage: llm.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func toolsFromToolbox(toolbox *tool.Toolbox) []toolSchema {
	schemas := toolbox.Schema()
	tools := make([]toolSchema, len(schemas))
	for i, s := range schemas {
		tools[i] = toolSchema{Type: "function", Function: s}
	}
	return tools
}
