// Package calendar exposes the calendar tool server as typed operations.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/blixt/calendar-assistant/mcpclient"
)

var ErrNoEvents = errors.New("calendar: no events found")

const (
	DefaultLookahead  = 30 * 24 * time.Hour
	DefaultMaxResults = 100
)

// Caller is the part of *mcpclient.Client used here.
type Caller interface {
	CallTool(ctx context.Context, name string, args any) (*mcpclient.Result, error)
}

// DateTime is the start or end of an event being written.
type DateTime struct {
	DateTime string `json:"dateTime" jsonschema_description:"Time in ISO 8601 format with timezone (e.g., 2025-03-04T14:00:00+05:30)"`
	TimeZone string `json:"timeZone,omitempty" jsonschema_description:"Time zone for the time, e.g. Asia/Kolkata"`
}

type EventInput struct {
	Summary     string   `json:"summary" jsonschema_description:"Title of the event"`
	Description string   `json:"description,omitempty" jsonschema_description:"Description of the event"`
	Location    string   `json:"location,omitempty" jsonschema_description:"Location of the event"`
	Start       DateTime `json:"start" jsonschema_description:"Start of the event"`
	End         DateTime `json:"end" jsonschema_description:"End of the event"`
}

type ListOptions struct {
	TimeMin    string `json:"timeMin" jsonschema_description:"Start of time range in ISO 8601 format"`
	TimeMax    string `json:"timeMax" jsonschema_description:"End of time range in ISO 8601 format"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema_description:"Maximum number of events to return"`
	OrderBy    string `json:"orderBy,omitempty" jsonschema:"enum=startTime,enum=updated" jsonschema_description:"Sort order for events"`
}

type Client struct {
	caller Caller
	log    zerolog.Logger

	// Now and Lookahead bound the window searched by FindByQuery.
	Now       func() time.Time
	Lookahead time.Duration
}

func New(caller Caller, logger zerolog.Logger) *Client {
	return &Client{
		caller:    caller,
		log:       logger,
		Now:       time.Now,
		Lookahead: DefaultLookahead,
	}
}

func (c *Client) CreateEvent(ctx context.Context, in EventInput) (json.RawMessage, error) {
	return c.call(ctx, "create_event", in)
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (json.RawMessage, error) {
	return c.call(ctx, "get_event", map[string]string{"eventId": eventID})
}

// UpdateEvent forwards args as-is. They must carry an eventId; any other
// field present is written to the event.
func (c *Client) UpdateEvent(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	if gjson.GetBytes(args, "eventId").String() == "" {
		return nil, fmt.Errorf("update_event: eventId is required")
	}
	return c.call(ctx, "update_event", args)
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) (json.RawMessage, error) {
	return c.call(ctx, "delete_event", map[string]string{"eventId": eventID})
}

// ListEvents returns the events in [TimeMin, TimeMax) in the order the
// server returns them.
func (c *Client) ListEvents(ctx context.Context, opts ListOptions) ([]Event, error) {
	res, err := c.caller.CallTool(ctx, "list_events", opts)
	if err != nil {
		return nil, err
	}
	events, err := ParseEvents(res.Text())
	if err != nil {
		return nil, fmt.Errorf("list_events: %w", err)
	}
	return events, nil
}

// FindByQuery lists the upcoming events and keeps those matching query.
func (c *Client) FindByQuery(ctx context.Context, query string) ([]Event, error) {
	now := c.Now()
	lookahead := c.Lookahead
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	events, err := c.ListEvents(ctx, ListOptions{
		TimeMin:    now.UTC().Format(time.RFC3339),
		TimeMax:    now.Add(lookahead).UTC().Format(time.RFC3339),
		MaxResults: DefaultMaxResults,
	})
	if err != nil {
		return nil, err
	}
	var matches []Event
	for _, e := range events {
		if e.Matches(query) {
			matches = append(matches, e)
		}
	}
	c.log.Debug().Str("query", query).Int("events", len(events)).Int("matches", len(matches)).Msg("Searched events")
	return matches, nil
}

// FindFirst returns the first event matching query, or ErrNoEvents.
func (c *Client) FindFirst(ctx context.Context, query string) (Event, error) {
	matches, err := c.FindByQuery(ctx, query)
	if err != nil {
		return Event{}, err
	}
	if len(matches) == 0 {
		return Event{}, ErrNoEvents
	}
	return matches[0], nil
}

func (c *Client) call(ctx context.Context, name string, args any) (json.RawMessage, error) {
	res, err := c.caller.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return res.Value(), nil
}
