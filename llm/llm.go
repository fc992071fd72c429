package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blixt/calendar-assistant/tool"
)

// Client is the completion client. It owns the tool schemas offered to the
// model and decorates the system prompt, but leaves the conversation itself
// to the caller.
type Client struct {
	provider Provider
	toolbox  *tool.Toolbox

	mu         sync.Mutex
	totalUsage Usage

	// Now returns the current time for the system prompt. Defaults to time.Now.
	Now func() time.Time
}

func New(provider Provider, tools ...tool.Tool) *Client {
	var toolbox *tool.Toolbox
	if len(tools) > 0 {
		toolbox = tool.Box(tools...)
	}
	return &Client{
		provider: provider,
		toolbox:  toolbox,
		Now:      time.Now,
	}
}

// NewWithToolbox returns a client that offers an existing toolbox.
func NewWithToolbox(provider Provider, toolbox *tool.Toolbox) *Client {
	return &Client{provider: provider, toolbox: toolbox, Now: time.Now}
}

// Toolbox returns the tools offered when Chat is called with includeTools.
func (c *Client) Toolbox() *tool.Toolbox {
	return c.toolbox
}

// Company returns the name of the company behind the provider.
func (c *Client) Company() string {
	return c.provider.Company()
}

func (c *Client) TotalUsage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalUsage
}

// Result is what the model answered: plain text, tool calls, or both.
type Result struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// HasToolCalls reports whether the model asked for any tool to be run.
func (r Result) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Chat sends the messages to the provider in a single request. System
// messages are merged into the system prompt and decorated with tool guidance.
// When includeTools is false no tool schemas are sent, which is how callers
// ask for a plain summary.
func (c *Client) Chat(ctx context.Context, messages []Message, includeTools bool) (Result, error) {
	if len(messages) == 0 {
		return Result{}, ErrEmptyConversation
	}

	var systemParts []string
	conversation := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, c.enhanceSystemPrompt(m.Content))
			continue
		}
		conversation = append(conversation, m)
	}
	if len(conversation) == 0 {
		return Result{}, ErrEmptyConversation
	}

	var tools *tool.Toolbox
	if includeTools {
		tools = c.toolbox
	}

	resp, err := c.provider.Generate(ctx, strings.Join(systemParts, "\n\n"), conversation, tools)
	if err != nil {
		return Result{}, fmt.Errorf("%s completion failed: %w", c.provider.Company(), err)
	}

	c.mu.Lock()
	c.totalUsage = c.totalUsage.Add(resp.Usage)
	c.mu.Unlock()

	return Result{
		Content:   resp.Message.Content,
		ToolCalls: resp.Message.ToolCalls,
		Usage:     resp.Usage,
	}, nil
}

func (c *Client) enhanceSystemPrompt(prompt string) string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	lines := []string{
		prompt,
		fmt.Sprintf("Current date and time: %s", now().Format(time.RFC1123Z)),
	}
	if c.toolbox != nil {
		lines = append(lines, "You have access to the following functions:")
		for i, t := range c.toolbox.All() {
			lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, t.FuncName(), t.Description()))
		}
	}
	lines = append(lines,
		"",
		`When users want to update or delete events, they can describe them naturally (e.g., "delete my meeting tomorrow", "update the project review next week").`,
		"Use the event ID only when certain about which event to modify, otherwise pass the description as the query.",
		"",
		"Always format dates in ISO 8601 format with timezone offset. For example, 2025-03-04T14:00:00+05:30 represents 2 PM IST on March 4th, 2025.",
	)
	return strings.Join(lines, "\n")
}
