package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/tool"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Model struct {
	accessToken     string
	model           string
	endpoint        string
	maxOutputTokens int
	temperature     float64
	topP            float64
	httpClient      *http.Client
}

func New(model string) *Model {
	return &Model{
		model:           model,
		maxOutputTokens: 4096,
		temperature:     0.1,
		topP:            0.95,
		httpClient:      http.DefaultClient,
	}
}

func (m *Model) WithGeminiAPI(apiKey string) *Model {
	return m.WithGeminiBaseURL(geminiBaseURL, apiKey)
}

// WithGeminiBaseURL is WithGeminiAPI against a different host.
func (m *Model) WithGeminiBaseURL(baseURL, apiKey string) *Model {
	m.accessToken = ""
	m.endpoint = fmt.Sprintf("%s/models/%s:generateContent?key=%s", baseURL, m.model, apiKey)
	return m
}

// WithVertexAI sends requests to a Vertex AI project, authenticated with an
// OAuth access token.
func (m *Model) WithVertexAI(accessToken, projectID, region string) *Model {
	m.accessToken = accessToken
	m.endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent", region, projectID, region, m.model)
	return m
}

func (m *Model) WithMaxOutputTokens(maxOutputTokens int) *Model {
	m.maxOutputTokens = maxOutputTokens
	return m
}

func (m *Model) WithTemperature(temperature float64) *Model {
	m.temperature = temperature
	return m
}

func (m *Model) WithTopP(topP float64) *Model {
	m.topP = topP
	return m
}

func (m *Model) WithHTTPClient(client *http.Client) *Model {
	m.httpClient = client
	return m
}

func (m *Model) Company() string {
	return "Google"
}

func (m *Model) Generate(ctx context.Context, systemPrompt string, messages []llm.Message, tools *tool.Toolbox) (*llm.Response, error) {
	if m.endpoint == "" {
		return nil, fmt.Errorf("must call either WithVertexAI(…) or WithGeminiAPI(…) first")
	}

	answered := llm.AnsweredToolCalls(messages)
	var apiMessages []message
	for _, msg := range messages {
		converted, err := messageFromLLM(msg, answered)
		if err != nil {
			return nil, err
		}
		apiMessages = append(apiMessages, converted)
	}

	payload := map[string]any{
		"contents": apiMessages,
		"generationConfig": map[string]any{
			"maxOutputTokens": m.maxOutputTokens,
			"temperature":     m.temperature,
			"topP":            m.topP,
		},
	}

	if systemPrompt != "" {
		payload["systemInstruction"] = map[string]any{
			"parts": parts{textPart(systemPrompt)},
		}
	}

	if tools != nil {
		payload["tools"] = map[string]any{
			"functionDeclarations": tools.Schema(),
		}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if m.accessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.accessToken))
	}
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

	if resp.StatusCode != http.StatusOK {
		apiErr := &llm.APIError{Company: m.Company(), StatusCode: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil {
			apiErr.Message = errResp.Error.Message
		}
		return nil, apiErr
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if len(result.Candidates) < 1 {
		return nil, llm.ErrNoChoices
	}

	msg := llm.Message{Role: llm.RoleAssistant}
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != nil {
			msg.Content += *p.Text
		}
		if p.FunctionCall != nil {
			args := p.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			// Gemini doesn't assign IDs to function calls.
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:        uuid.NewString(),
				Name:      p.FunctionCall.Name,
				Arguments: args,
			})
		}
	}

	var usage llm.Usage
	if result.UsageMetadata != nil {
		usage = llm.Usage{
			InputTokens:  result.UsageMetadata.PromptTokenCount,
			OutputTokens: result.UsageMetadata.CandidatesTokenCount,
		}
	}
	return &llm.Response{Message: msg, Usage: usage}, nil
}
