// Package mcpclient runs a tool server as a subprocess and calls its tools
// over MCP on stdio.
package mcpclient

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// connectTimeout bounds the handshake, which does not follow the caller's
// cancellation.
const connectTimeout = 30 * time.Second

// transportBuilder is overridden in tests to stub the subprocess.
var transportBuilder = buildTransport

// Command describes how to launch a tool server.
type Command struct {
	Path string
	Args []string
	// Env is added on top of the current process environment.
	Env map[string]string
}

// Client is a lazily connected MCP client. All calls share one subprocess.
type Client struct {
	name    string
	command Command
	log     zerolog.Logger

	impl *mcpsdk.Client

	// connectMu serializes connection attempts.
	connectMu sync.Mutex

	mu      sync.Mutex
	session *mcpsdk.ClientSession
	closed  bool
}

func New(name string, command Command, logger zerolog.Logger) *Client {
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "calendar-assistant", Version: "1.0.0"}, nil)
	return &Client{
		name:    name,
		command: command,
		log:     logger.With().Str("backend", name).Logger(),
		impl:    impl,
	}
}

func (c *Client) Name() string {
	return c.name
}

// Connect starts the subprocess and performs the MCP handshake. It is a
// no-op once connected. A failed attempt is not remembered, so the next call
// tries again.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	connected, closed := c.session != nil, c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("%s: client is closed", c.name)
	}
	if connected {
		return nil
	}

	transport, err := transportBuilder(c.command)
	if err != nil {
		return fmt.Errorf("%s: build transport: %w", c.name, err)
	}
	// The session outlives the request that happened to start it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), connectTimeout)
	defer cancel()
	session, err := c.impl.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("%s: connect: %w", c.name, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = session.Close()
		return fmt.Errorf("%s: client is closed", c.name)
	}
	c.session = session
	c.mu.Unlock()
	c.log.Info().Str("command", c.command.Path).Msg("Connected to tool server")
	return nil
}

// CallTool invokes a tool and waits for its single response. A result the
// server flags as an error is returned as a *ToolError.
func (c *Client) CallTool(ctx context.Context, name string, args any) (*Result, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, fmt.Errorf("%s: client is closed", c.name)
	}

	c.log.Debug().Str("tool", name).Interface("args", args).Msg("Calling tool")
	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("%s: call %s: %w", c.name, name, err)
	}

	result := toResult(res)
	if result.IsError {
		return nil, &ToolError{Tool: name, Message: result.Text()}
	}
	return result, nil
}

// Close shuts down the session and with it the subprocess.
func (c *Client) Close() error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.closed = true
	c.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Close()
}

// Result holds the text parts of a tool response.
type Result struct {
	Texts   []string
	IsError bool
}

func (r *Result) Text() string {
	return strings.Join(r.Texts, "\n")
}

func toResult(res *mcpsdk.CallToolResult) *Result {
	if res == nil {
		return &Result{}
	}
	out := &Result{IsError: res.IsError}
	for _, content := range res.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			out.Texts = append(out.Texts, text.Text)
		}
	}
	return out
}

// ToolError is a failure reported by the tool itself rather than the transport.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tool %s failed", e.Tool)
	}
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

func buildTransport(command Command) (mcpsdk.Transport, error) {
	if strings.TrimSpace(command.Path) == "" {
		return nil, fmt.Errorf("command is empty")
	}
	// The subprocess outlives any single request, so it isn't bound to a context.
	// #nosec G204 -- the command comes from trusted configuration
	cmd := exec.Command(command.Path, command.Args...)
	cmd.Env = os.Environ()
	for k, v := range command.Env {
		if v == "" {
			continue
		}
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}
