package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/tool"
)

type eventParams struct {
	EventID string `json:"eventId"`
}

func TestGenerate_RequiresEndpoint(t *testing.T) {
	_, err := New("gemini-2.0-flash").Generate(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	assert.Error(t, err)
}

func TestGenerate_FunctionCall(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [
				{"text": "Looking it up."},
				{"functionCall": {"name": "get_event", "args": {"eventId": "abc"}}}
			]}}],
			"usageMetadata": {"promptTokenCount": 20, "candidatesTokenCount": 7, "totalTokenCount": 27}
		}`))
	}))
	defer srv.Close()

	model := New("gemini-2.0-flash").WithGeminiBaseURL(srv.URL, "secret")
	tools := tool.Box(tool.Func[eventParams]("Get", "Get an event", "get_event"))
	resp, err := model.Generate(context.Background(), "system text", []llm.Message{
		{Role: llm.RoleUser, Content: "show abc"},
	}, tools)
	require.NoError(t, err)

	assert.Equal(t, "Looking it up.", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.NotEmpty(t, resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "get_event", resp.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"eventId":"abc"}`, string(resp.Message.ToolCalls[0].Arguments))
	assert.Equal(t, llm.Usage{InputTokens: 20, OutputTokens: 7}, resp.Usage)

	assert.Contains(t, payload, "systemInstruction")
	declarations := payload["tools"].(map[string]any)["functionDeclarations"].([]any)
	require.Len(t, declarations, 1)
	assert.Equal(t, "get_event", declarations[0].(map[string]any)["name"])
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	_, err := New("gemini-2.0-flash").WithGeminiBaseURL(srv.URL, "bad").
		Generate(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "API key not valid", apiErr.Error())
}

func TestMessageFromLLM(t *testing.T) {
	answered := map[string]bool{"call_1": true}

	msg, err := messageFromLLM(llm.Message{
		Role:    llm.RoleAssistant,
		Content: "",
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "get_event", Arguments: json.RawMessage(`{}`)},
			{ID: "call_2", Name: "delete_event", Arguments: json.RawMessage(`{}`)},
		},
	}, answered)
	require.NoError(t, err)
	assert.Equal(t, "model", msg.Role)
	require.Len(t, msg.Parts, 1, "only answered calls are sent")
	assert.Equal(t, "get_event", msg.Parts[0].FunctionCall.Name)

	msg, err = messageFromLLM(llm.Message{Role: llm.RoleTool, Name: "get_event", ToolCallID: "call_1", Content: `[1,2]`}, answered)
	require.NoError(t, err)
	assert.Equal(t, "user", msg.Role)
	assert.JSONEq(t, `{"result":[1,2]}`, string(msg.Parts[0].FunctionResponse.Response))

	msg, err = messageFromLLM(llm.Message{Role: llm.RoleFunction, Name: "calendar_operation_results", Content: "[]"}, answered)
	require.NoError(t, err)
	assert.Equal(t, "user", msg.Role)
	assert.Equal(t, "[]", *msg.Parts[0].Text)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestGenerate_VertexAI(t *testing.T) {
	var payload map[string]any
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "europe-west4-aiplatform.googleapis.com", r.URL.Host)
		assert.Equal(t, "/v1/projects/cal-prod/locations/europe-west4/publishers/google/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "Bearer ya29.token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Done."}]}}]}`)),
		}, nil
	})}

	model := New("gemini-2.0-flash").
		WithVertexAI("ya29.token", "cal-prod", "europe-west4").
		WithTopP(0.5).
		WithHTTPClient(client)
	resp, err := model.Generate(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Done.", resp.Message.Content)
	assert.Equal(t, 0.5, payload["generationConfig"].(map[string]any)["topP"])
}
