package mcpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrNoJSON = errors.New("mcpclient: no JSON value in tool output")

// ExtractJSON returns the JSON value embedded in free-text tool output. Tool
// servers often prefix their JSON with a human readable line, e.g.
// "Found 2 events:\n[...]". The whole text is tried first, then every offset
// of '[' or '{' in order until one decodes as a complete value.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && gjson.Valid(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		return bytes.Clone(raw), nil
	}
	return nil, ErrNoJSON
}

// Value returns the JSON embedded in the result's text, or the text itself
// as a JSON string when there is none.
func (r *Result) Value() json.RawMessage {
	text := r.Text()
	if raw, err := ExtractJSON(text); err == nil {
		return raw
	}
	data, _ := json.Marshal(text)
	return data
}
