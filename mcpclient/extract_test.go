package mcpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"whole text", `[{"id":"a"}]`, `[{"id":"a"}]`},
		{"whitespace", "\n  {\"ok\":true}\n", `{"ok":true}`},
		{"prefix", "Found 2 events:\n[{\"id\":\"a\"},{\"id\":\"b\"}]", `[{"id":"a"},{"id":"b"}]`},
		{"bracket in prose", "Events [upcoming]: [{\"id\":\"a\"}]", `[{"id":"a"}]`},
		{"trailing text", `Result: {"id":"a"} (done)`, `{"id":"a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.text)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSON_None(t *testing.T) {
	_, err := ExtractJSON("No events found.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ExtractJSON("broken [ {")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestResultValue(t *testing.T) {
	r := &Result{Texts: []string{"Event created:", `{"id":"e1"}`}}
	assert.JSONEq(t, `{"id":"e1"}`, string(r.Value()))

	r = &Result{Texts: []string{"Event deleted successfully"}}
	assert.JSONEq(t, `"Event deleted successfully"`, string(r.Value()))
}
