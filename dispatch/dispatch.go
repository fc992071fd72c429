// Package dispatch turns a chat message into calendar and email operations.
// The model's tool calls are run one after another against the backend and
// the model is then asked to summarize what happened.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/blixt/calendar-assistant/calendar"
	"github.com/blixt/calendar-assistant/gmail"
	"github.com/blixt/calendar-assistant/llm"
)

const (
	DefaultSystemPrompt = "You are a helpful calendar assistant that can manage calendar events. You can create, read, update, and delete events, as well as list events within a time range. You should also be able to answer general questions about calendar management without using any tools."

	// ResultsName names the function message that hands tool results back to
	// the model.
	ResultsName = "calendar_operation_results"

	fallbackAssistantContent = "I'll help you with that calendar operation."
	noEventsFound            = "No events found"
)

var ErrMailUnavailable = errors.New("dispatch: email is not configured")

// Backend is what tool calls run against. Mail is nil when no email server
// is configured.
type Backend struct {
	Calendar *calendar.Client
	Mail     *gmail.Client
}

// ToolResult is the outcome of one tool call. Result is whatever the backend
// returned, the string "No events found", or {"error": "..."}.
type ToolResult struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
	Args   json.RawMessage `json:"args"`
}

type Reply struct {
	Response        string       `json:"response"`
	FunctionResults []ToolResult `json:"function_results,omitempty"`
}

type Dispatcher struct {
	client *llm.Client
	log    zerolog.Logger

	SystemPrompt string
	// DebugFile, when set, receives a YAML dump of every request.
	DebugFile string
}

// New returns a dispatcher using client for completions. The client's
// toolbox decides which tool calls can be decoded; see Tools.
func New(client *llm.Client, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client:       client,
		log:          logger,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Run handles one chat message. An error is only returned when a completion
// fails; failed tool calls are reported in the reply instead. observe may be
// nil.
func (d *Dispatcher) Run(ctx context.Context, backend Backend, message string, observe func(Update)) (*Reply, error) {
	if observe == nil {
		observe = func(Update) {}
	}
	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = &d.log
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: d.SystemPrompt},
		{Role: llm.RoleUser, Content: message},
	}

	start := time.Now()
	first, err := d.client.Chat(ctx, messages, true)
	if err != nil {
		observe(ErrorUpdate{Error: err})
		return nil, err
	}
	log.Debug().
		Int("toolCalls", len(first.ToolCalls)).
		Int("inputTokens", first.Usage.InputTokens).
		Int("outputTokens", first.Usage.OutputTokens).
		Dur("took", time.Since(start)).
		Msg("First completion")

	if !first.HasToolCalls() {
		d.writeDebug(messages, first, nil)
		return &Reply{Response: first.Content}, nil
	}
	if first.Content != "" {
		observe(TextUpdate{Text: first.Content})
	}

	results := make([]ToolResult, 0, len(first.ToolCalls))
	for _, call := range first.ToolCalls {
		results = append(results, d.runToolCall(ctx, log, backend, call, observe))
	}
	d.writeDebug(messages, first, results)

	resultsJSON, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not encode tool results: %w", err)
	}
	assistantContent := first.Content
	if assistantContent == "" {
		assistantContent = fallbackAssistantContent
	}
	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: assistantContent, ToolCalls: first.ToolCalls},
		llm.Message{Role: llm.RoleFunction, Name: ResultsName, Content: string(resultsJSON)},
	)

	second, err := d.client.Chat(ctx, messages, false)
	if err != nil {
		observe(ErrorUpdate{Error: err})
		return nil, err
	}
	log.Debug().
		Int("inputTokens", second.Usage.InputTokens).
		Int("outputTokens", second.Usage.OutputTokens).
		Dur("took", time.Since(start)).
		Msg("Summary completion")

	return &Reply{Response: second.Content, FunctionResults: results}, nil
}

func (d *Dispatcher) runToolCall(ctx context.Context, log *zerolog.Logger, backend Backend, call llm.ToolCall, observe func(Update)) ToolResult {
	op := Decode(d.client.Toolbox(), call)
	label := call.Name
	if t := d.client.Toolbox().Get(call.Name); t != nil {
		label = t.Label()
	}
	args := argsJSON(call.Arguments)
	observe(ToolStartUpdate{Call: call, Label: label, Args: args})

	var (
		value json.RawMessage
		err   error
	)
	var pc panics.Catcher
	pc.Try(func() {
		value, err = d.execute(ctx, backend, op)
	})
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	result := ToolResult{Name: call.Name, Args: args}
	switch {
	case errors.Is(err, calendar.ErrNoEvents):
		result.Result = mustJSON(noEventsFound)
		err = nil
	case err != nil:
		result.Result = errorJSON(err)
	default:
		result.Result = value
	}
	if len(result.Result) == 0 {
		result.Result = json.RawMessage("null")
	}

	event := log.Info()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.Str("tool", call.Name).RawJSON("args", result.Args).Msg("Ran tool call")

	observe(ToolDoneUpdate{Result: result, Label: label, Error: err})
	return result
}

func (d *Dispatcher) execute(ctx context.Context, backend Backend, op Operation) (json.RawMessage, error) {
	switch op := op.(type) {
	case Unknown:
		return nil, fmt.Errorf("unknown function: %s", op.Name)
	case Invalid:
		return nil, op.Err
	case CreateEvent, GetEvent, UpdateEvent, DeleteEvent, ListEvents:
		if backend.Calendar == nil {
			return nil, fmt.Errorf("calendar is not connected")
		}
		return d.executeCalendar(ctx, backend.Calendar, op)
	default:
		if backend.Mail == nil {
			return nil, ErrMailUnavailable
		}
		return d.executeMail(ctx, backend.Mail, op)
	}
}

func (d *Dispatcher) executeCalendar(ctx context.Context, cal *calendar.Client, op Operation) (json.RawMessage, error) {
	switch op := op.(type) {
	case CreateEvent:
		return cal.CreateEvent(ctx, calendar.EventInput(op))
	case GetEvent:
		return cal.GetEvent(ctx, op.EventID)
	case UpdateEvent:
		args := op.Args
		if len(args) == 0 {
			var err error
			if args, err = json.Marshal(op); err != nil {
				return nil, err
			}
		}
		if op.EventID == "" {
			event, err := cal.FindFirst(ctx, op.Query)
			if err != nil {
				return nil, err
			}
			if args, err = sjson.SetBytes(args, "eventId", event.ID); err != nil {
				return nil, err
			}
			if args, err = sjson.DeleteBytes(args, "query"); err != nil {
				return nil, err
			}
		}
		return cal.UpdateEvent(ctx, args)
	case DeleteEvent:
		eventID := op.EventID
		if eventID == "" {
			event, err := cal.FindFirst(ctx, op.Query)
			if err != nil {
				return nil, err
			}
			eventID = event.ID
		}
		return cal.DeleteEvent(ctx, eventID)
	case ListEvents:
		events, err := cal.ListEvents(ctx, calendar.ListOptions(op))
		if err != nil {
			return nil, err
		}
		return json.Marshal(events)
	default:
		return nil, fmt.Errorf("unhandled operation %T", op)
	}
}

func (d *Dispatcher) executeMail(ctx context.Context, mail *gmail.Client, op Operation) (json.RawMessage, error) {
	switch op := op.(type) {
	case SendEmail:
		return mail.SendEmail(ctx, gmail.Draft(op))
	case ReadEmail:
		return mail.ReadEmail(ctx, op.MessageID)
	case SearchEmails:
		return mail.SearchEmails(ctx, gmail.Search(op))
	case ModifyEmail:
		return mail.ModifyEmail(ctx, gmail.LabelChange(op))
	case DeleteEmail:
		return mail.DeleteEmail(ctx, op.MessageID)
	default:
		return nil, fmt.Errorf("unhandled operation %T", op)
	}
}

// argsJSON keeps the arguments as sent when they are valid JSON, and as a
// string otherwise.
func argsJSON(args json.RawMessage) json.RawMessage {
	if len(args) > 0 && gjson.ValidBytes(args) {
		return args
	}
	if len(args) == 0 {
		return json.RawMessage("{}")
	}
	return mustJSON(string(args))
}

func errorJSON(err error) json.RawMessage {
	data, setErr := sjson.SetBytes([]byte(`{}`), "error", err.Error())
	if setErr != nil {
		return mustJSON(map[string]string{"error": err.Error()})
	}
	return data
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal %T: %v", v, err))
	}
	return data
}
