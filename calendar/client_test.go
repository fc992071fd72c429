package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blixt/calendar-assistant/mcpclient"
)

type call struct {
	name string
	args string
}

type fakeCaller struct {
	calls     []call
	responses map[string]string
	err       error
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, args any) (*mcpclient.Result, error) {
	data, _ := json.Marshal(args)
	f.calls = append(f.calls, call{name: name, args: string(data)})
	if f.err != nil {
		return nil, f.err
	}
	return &mcpclient.Result{Texts: []string{f.responses[name]}}, nil
}

const twoEvents = `Found 3 events:
[
  {"id":"e1","summary":"Team Standup","description":"Daily sync","start":{"dateTime":"2025-03-04T09:00:00Z"},"end":{"dateTime":"2025-03-04T09:15:00Z"}},
  {"id":"e2","summary":"Project Review","start":{"dateTime":"2025-03-05T14:00:00+05:30"},"end":{"dateTime":"2025-03-05T15:00:00+05:30"}},
  {"id":"e3","summary":"Offsite","start":{"date":"2025-03-20"},"end":{"date":"2025-03-21"}}
]`

func newTestClient(f *fakeCaller) *Client {
	c := New(f, zerolog.Nop())
	c.Now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestListEvents(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"list_events": twoEvents}}
	c := newTestClient(f)

	events, err := c.ListEvents(context.Background(), ListOptions{TimeMin: "2025-03-01T00:00:00Z", TimeMax: "2025-04-01T00:00:00Z", MaxResults: 100})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "Team Standup", events[0].Summary)
	assert.Equal(t, "Daily sync", events[0].Description)
	assert.Equal(t, "2025-03-20", events[2].Start.Date)

	require.Len(t, f.calls, 1)
	assert.Equal(t, "list_events", f.calls[0].name)
	assert.JSONEq(t, `{"timeMin":"2025-03-01T00:00:00Z","timeMax":"2025-04-01T00:00:00Z","maxResults":100}`, f.calls[0].args)
}

func TestListEvents_Idempotent(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"list_events": twoEvents}}
	c := newTestClient(f)
	opts := ListOptions{TimeMin: "2025-03-01T00:00:00Z", TimeMax: "2025-03-02T00:00:00Z"}

	first, err := c.ListEvents(context.Background(), opts)
	require.NoError(t, err)
	second, err := c.ListEvents(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListEvents_NoJSON(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"list_events": "No events found."}}
	events, err := newTestClient(f).ListEvents(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events)
}

func TestListEvents_NotAList(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"list_events": `{"id":"e1"}`}}
	_, err := newTestClient(f).ListEvents(context.Background(), ListOptions{})
	assert.Error(t, err)
}

func TestFindByQuery(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"list_events": twoEvents}}
	c := newTestClient(f)

	tests := []struct {
		query string
		want  []string
	}{
		{"delete my team standup tomorrow", []string{"e1"}},
		{"review", []string{"e2"}},
		{"daily sync", []string{"e1"}},
		{"the event on 2025-03-20", []string{"e3"}},
		{"meeting on 3/5/2025", []string{"e2"}},
		{"3/20", []string{"e3"}},
		{"2025-03", []string{"e1", "e2", "e3"}},
		{"dentist", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			matches, err := c.FindByQuery(context.Background(), tt.query)
			require.NoError(t, err)
			var ids []string
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.calls[0].args), &args))
	assert.Equal(t, "2025-03-01T12:00:00Z", args["timeMin"])
	assert.Equal(t, "2025-03-31T12:00:00Z", args["timeMax"])
	assert.EqualValues(t, 100, args["maxResults"])
}

func TestFindFirst(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{"list_events": twoEvents}}
	c := newTestClient(f)

	e, err := c.FindFirst(context.Background(), "standup")
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)

	_, err = c.FindFirst(context.Background(), "dentist")
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestMutations(t *testing.T) {
	f := &fakeCaller{responses: map[string]string{
		"create_event": `Event created: {"id":"new1","summary":"Lunch"}`,
		"update_event": "Event updated",
		"delete_event": "Event deleted successfully",
		"get_event":    `{"id":"e1","summary":"Team Standup"}`,
	}}
	c := newTestClient(f)
	ctx := context.Background()

	out, err := c.CreateEvent(ctx, EventInput{
		Summary: "Lunch",
		Start:   DateTime{DateTime: "2025-03-04T12:00:00Z"},
		End:     DateTime{DateTime: "2025-03-04T13:00:00Z"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"new1","summary":"Lunch"}`, string(out))
	assert.JSONEq(t, `{"summary":"Lunch","start":{"dateTime":"2025-03-04T12:00:00Z"},"end":{"dateTime":"2025-03-04T13:00:00Z"}}`, f.calls[0].args)

	out, err = c.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"e1","summary":"Team Standup"}`, string(out))

	out, err = c.UpdateEvent(ctx, json.RawMessage(`{"eventId":"e1","summary":"Standup"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"Event updated"`, string(out))

	_, err = c.UpdateEvent(ctx, json.RawMessage(`{"summary":"Standup"}`))
	assert.ErrorContains(t, err, "eventId is required")

	out, err = c.DeleteEvent(ctx, "e1")
	require.NoError(t, err)
	assert.JSONEq(t, `"Event deleted successfully"`, string(out))
	assert.JSONEq(t, `{"eventId":"e1"}`, f.calls[len(f.calls)-1].args)
}

func TestCallError(t *testing.T) {
	f := &fakeCaller{err: errors.New("pipe closed")}
	_, err := newTestClient(f).GetEvent(context.Background(), "e1")
	assert.ErrorContains(t, err, "pipe closed")
}
