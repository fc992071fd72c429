package llm

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleFunction carries results back to the model outside of the
	// tool-call protocol, as a named message.
	RoleFunction = "function"
	RoleTool     = "tool"
)

type Message struct {
	// Role can be "system", "user", "assistant", "function", or "tool".
	Role string `json:"role"`
	// Name can be used to identify different identities within the same role.
	Name string `json:"name,omitempty"`
	// Content is the message content.
	Content string `json:"content"`
	// ToolCalls is the list of tool calls that this message is part of.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// ToolCallID is the ID of the tool call that this message is part of.
	ToolCallID string `json:"toolCallId,omitempty"`
}

// AnsweredToolCalls returns the IDs of tool calls that have a matching "tool"
// message somewhere in messages. Providers use it to avoid sending tool calls
// whose results were delivered some other way.
func AnsweredToolCalls(messages []Message) map[string]bool {
	answered := make(map[string]bool)
	for _, m := range messages {
		if m.Role == RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}
	return answered
}
