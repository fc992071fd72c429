package dispatch

import (
	"encoding/json"

	"github.com/blixt/calendar-assistant/llm"
)

type UpdateType string

const (
	UpdateTypeToolStart UpdateType = "tool_start"
	UpdateTypeToolDone  UpdateType = "tool_done"
	UpdateTypeError     UpdateType = "error"
	UpdateTypeText      UpdateType = "text"
)

// Update is sent to the observer passed to Run while a request is handled.
type Update interface {
	Type() UpdateType
}

type ToolStartUpdate struct {
	Call  llm.ToolCall
	Label string
	// Args is Call.Arguments, or the arguments as a JSON string when they
	// aren't valid JSON.
	Args json.RawMessage
}

func (u ToolStartUpdate) Type() UpdateType {
	return UpdateTypeToolStart
}

type ToolDoneUpdate struct {
	Result ToolResult
	Label  string
	// Error is set when the call failed. The failure is also recorded in
	// Result.
	Error error
}

func (u ToolDoneUpdate) Type() UpdateType {
	return UpdateTypeToolDone
}

type ErrorUpdate struct {
	Error error
}

func (u ErrorUpdate) Type() UpdateType {
	return UpdateTypeError
}

// TextUpdate carries text the model produced alongside its tool calls.
type TextUpdate struct {
	Text string
}

func (u TextUpdate) Type() UpdateType {
	return UpdateTypeText
}
