package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/blixt/calendar-assistant/calendar"
	"github.com/blixt/calendar-assistant/gmail"
	"github.com/blixt/calendar-assistant/llm"
	"github.com/blixt/calendar-assistant/tool"
)

// Operation is one decoded tool call. The set of implementations is closed;
// callers switch on the concrete type.
type Operation interface {
	FuncName() string
	operation()
}

type CreateEvent calendar.EventInput

type GetEvent struct {
	EventID string `json:"eventId" jsonschema_description:"ID of the event to retrieve"`
}

type UpdateEvent struct {
	EventID     string             `json:"eventId,omitempty" jsonschema_description:"ID of the event to update (if known)"`
	Query       string             `json:"query,omitempty" jsonschema_description:"Natural language description of the event to update (e.g., 'team meeting', 'project review')"`
	Summary     string             `json:"summary,omitempty" jsonschema_description:"New event title"`
	Description string             `json:"description,omitempty" jsonschema_description:"New event description"`
	Location    string             `json:"location,omitempty" jsonschema_description:"New event location"`
	Start       *calendar.DateTime `json:"start,omitempty" jsonschema_description:"New start of the event"`
	End         *calendar.DateTime `json:"end,omitempty" jsonschema_description:"New end of the event"`

	// Args are the arguments exactly as the model sent them.
	Args json.RawMessage `json:"-"`
}

func (UpdateEvent) JSONSchemaExtend(s *jsonschema.Schema) {
	eventIDOrQuery(s)
}

type DeleteEvent struct {
	EventID string `json:"eventId,omitempty" jsonschema_description:"ID of the event to delete (if known)"`
	Query   string `json:"query,omitempty" jsonschema_description:"Natural language description of the event (e.g., 'team meeting tomorrow', 'project review on March 26th')"`
}

func (DeleteEvent) JSONSchemaExtend(s *jsonschema.Schema) {
	eventIDOrQuery(s)
}

func eventIDOrQuery(s *jsonschema.Schema) {
	s.AnyOf = []*jsonschema.Schema{
		{Required: []string{"eventId"}},
		{Required: []string{"query"}},
	}
}

type ListEvents calendar.ListOptions

type SendEmail gmail.Draft

type ReadEmail struct {
	MessageID string `json:"messageId" jsonschema_description:"ID of the email message to retrieve"`
}

type SearchEmails gmail.Search

type ModifyEmail gmail.LabelChange

type DeleteEmail struct {
	MessageID string `json:"messageId" jsonschema_description:"ID of the email message to delete"`
}

// Unknown is a call to a function that isn't in the catalog.
type Unknown struct {
	Name string
}

// Invalid is a call whose arguments didn't match the function's schema.
type Invalid struct {
	Name string
	Err  error
}

func (CreateEvent) FuncName() string  { return "create_event" }
func (GetEvent) FuncName() string     { return "get_event" }
func (UpdateEvent) FuncName() string  { return "update_event" }
func (DeleteEvent) FuncName() string  { return "delete_event" }
func (ListEvents) FuncName() string   { return "list_events" }
func (SendEmail) FuncName() string    { return "send_email" }
func (ReadEmail) FuncName() string    { return "read_email" }
func (SearchEmails) FuncName() string { return "search_emails" }
func (ModifyEmail) FuncName() string  { return "modify_email" }
func (DeleteEmail) FuncName() string  { return "delete_email" }
func (u Unknown) FuncName() string    { return u.Name }
func (i Invalid) FuncName() string    { return i.Name }

func (CreateEvent) operation()  {}
func (GetEvent) operation()     {}
func (UpdateEvent) operation()  {}
func (DeleteEvent) operation()  {}
func (ListEvents) operation()   {}
func (SendEmail) operation()    {}
func (ReadEmail) operation()    {}
func (SearchEmails) operation() {}
func (ModifyEmail) operation()  {}
func (DeleteEmail) operation()  {}
func (Unknown) operation()      {}
func (Invalid) operation()      {}

// Tools returns the functions offered to the model, in the order they are
// listed in the system prompt.
func Tools() *tool.Toolbox {
	return tool.Box(
		tool.Func[CreateEvent]("Create Event", "Creates a new event in Google Calendar", "create_event"),
		tool.Func[GetEvent]("Get Event", "Retrieves details of a specific event", "get_event"),
		tool.Func[UpdateEvent]("Update Event", "Updates an existing event. Can find events by description, date, or ID", "update_event"),
		tool.Func[DeleteEvent]("Delete Event", "Deletes an event from the calendar. Can find events by description, date, or ID", "delete_event"),
		tool.Func[ListEvents]("List Events", "Lists events within a specified time range", "list_events"),
		tool.Func[SendEmail]("Send Email", "Send a new email", "send_email"),
		tool.Func[ReadEmail]("Read Email", "Retrieve the content of a specific email", "read_email"),
		tool.Func[SearchEmails]("Search Emails", "Search emails using Gmail search syntax", "search_emails"),
		tool.Func[ModifyEmail]("Modify Email", "Modify email labels", "modify_email"),
		tool.Func[DeleteEmail]("Delete Email", "Delete an email", "delete_email"),
	)
}

// Decode turns a tool call into an Operation. It never fails; calls that
// can't be decoded become Unknown or Invalid.
func Decode(tools *tool.Toolbox, call llm.ToolCall) Operation {
	if tools == nil || tools.Get(call.Name) == nil {
		return Unknown{Name: call.Name}
	}
	v, err := tools.Parse(call.Name, call.Arguments)
	if err != nil {
		return Invalid{Name: call.Name, Err: err}
	}
	switch op := v.(type) {
	case UpdateEvent:
		op.Args = call.Arguments
		return op
	case Operation:
		return op
	default:
		return Invalid{Name: call.Name, Err: fmt.Errorf("%s does not map to an operation", call.Name)}
	}
}
