package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blixt/calendar-assistant/calendar"
	"github.com/blixt/calendar-assistant/llm"
)

func TestTools_Catalog(t *testing.T) {
	var names []string
	for _, s := range Tools().Schema() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"create_event", "get_event", "update_event", "delete_event", "list_events",
		"send_email", "read_email", "search_emails", "modify_email", "delete_email",
	}, names)
}

func TestTools_Schemas(t *testing.T) {
	schemas := map[string]map[string]any{}
	for _, s := range Tools().Schema() {
		schemas[s.Name] = s.ParameterMap()
	}

	assert.ElementsMatch(t, []any{"summary", "start", "end"}, schemas["create_event"]["required"])
	start := schemas["create_event"]["properties"].(map[string]any)["start"].(map[string]any)
	assert.Equal(t, []any{"dateTime"}, start["required"])

	assert.Len(t, schemas["update_event"]["anyOf"], 2)
	assert.Len(t, schemas["delete_event"]["anyOf"], 2)
	assert.NotContains(t, schemas["update_event"]["properties"], "Args")

	orderBy := schemas["list_events"]["properties"].(map[string]any)["orderBy"].(map[string]any)
	assert.Equal(t, []any{"startTime", "updated"}, orderBy["enum"])
	assert.ElementsMatch(t, []any{"timeMin", "timeMax"}, schemas["list_events"]["required"])

	assert.ElementsMatch(t, []any{"to", "subject", "body"}, schemas["send_email"]["required"])
	assert.ElementsMatch(t, []any{"messageId", "labelIds"}, schemas["modify_email"]["required"])
}

func TestDecode(t *testing.T) {
	tools := Tools()

	op := Decode(tools, llm.ToolCall{Name: "create_event", Arguments: json.RawMessage(`{"summary":"Lunch","start":{"dateTime":"2025-03-04T12:00:00Z"},"end":{"dateTime":"2025-03-04T13:00:00Z"}}`)})
	require.IsType(t, CreateEvent{}, op)
	assert.Equal(t, "Lunch", op.(CreateEvent).Summary)
	assert.Equal(t, calendar.DateTime{DateTime: "2025-03-04T12:00:00Z"}, op.(CreateEvent).Start)

	args := json.RawMessage(`{"query":"standup","summary":"Daily"}`)
	op = Decode(tools, llm.ToolCall{Name: "update_event", Arguments: args})
	require.IsType(t, UpdateEvent{}, op)
	assert.Equal(t, "standup", op.(UpdateEvent).Query)
	assert.Equal(t, args, op.(UpdateEvent).Args)

	op = Decode(tools, llm.ToolCall{Name: "delete_event", Arguments: json.RawMessage(`{}`)})
	require.IsType(t, Invalid{}, op)
	assert.Equal(t, "delete_event", op.FuncName())

	op = Decode(tools, llm.ToolCall{Name: "delete_event", Arguments: json.RawMessage(`not json`)})
	require.IsType(t, Invalid{}, op)

	op = Decode(tools, llm.ToolCall{Name: "schedule_vacation", Arguments: json.RawMessage(`{}`)})
	assert.Equal(t, Unknown{Name: "schedule_vacation"}, op)

	op = Decode(tools, llm.ToolCall{Name: "modify_email", Arguments: json.RawMessage(`{"messageId":"m1","labelIds":["STARRED"]}`)})
	assert.Equal(t, ModifyEmail{MessageID: "m1", LabelIDs: []string{"STARRED"}}, op)
}
