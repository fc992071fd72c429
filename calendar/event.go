package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/blixt/calendar-assistant/mcpclient"
)

// EventTime is either a timed instant (DateTime) or an all-day date (Date).
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Time parses the start or end into a time.Time. All-day dates are midnight UTC.
func (t EventTime) Time() (time.Time, error) {
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		return time.Parse(time.DateOnly, t.Date)
	}
	return time.Time{}, fmt.Errorf("event time is empty")
}

type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Status      string    `json:"status,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

// ParseEvents reads the events out of a list_events response. Output with no
// JSON in it, such as "No events found.", is an empty list.
func ParseEvents(text string) ([]Event, error) {
	raw, err := mcpclient.ExtractJSON(text)
	if err == mcpclient.ErrNoJSON {
		return []Event{}, nil
	} else if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(raw)
	if parsed.IsObject() && parsed.Get("items").IsArray() {
		parsed = parsed.Get("items")
	}
	if !parsed.IsArray() {
		return nil, fmt.Errorf("expected a list of events, got %s", parsed.Type)
	}

	events := []Event{}
	parsed.ForEach(func(_, item gjson.Result) bool {
		events = append(events, Event{
			ID:          item.Get("id").String(),
			Summary:     item.Get("summary").String(),
			Description: item.Get("description").String(),
			Location:    item.Get("location").String(),
			Start:       parseEventTime(item.Get("start")),
			End:         parseEventTime(item.Get("end")),
			Status:      item.Get("status").String(),
			HTMLLink:    item.Get("htmlLink").String(),
		})
		return true
	})
	return events, nil
}

func parseEventTime(r gjson.Result) EventTime {
	return EventTime{
		DateTime: r.Get("dateTime").String(),
		Date:     r.Get("date").String(),
		TimeZone: r.Get("timeZone").String(),
	}
}

// Matches reports whether the free-text query describes this event. The title
// matches in either direction ("delete my standup" matches "Standup"), the
// description must contain the query, and the start date in 2006-01-02 or
// 1/2/2006 form matches in either direction, so "3/26" finds March 26.
func (e Event) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	summary := strings.ToLower(strings.TrimSpace(e.Summary))
	if summary != "" && (strings.Contains(q, summary) || strings.Contains(summary, q)) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Description), q) {
		return true
	}
	start, err := e.Start.Time()
	if err != nil {
		return false
	}
	for _, layout := range []string{time.DateOnly, "1/2/2006"} {
		date := start.Format(layout)
		if strings.Contains(q, date) || strings.Contains(date, q) {
			return true
		}
	}
	return false
}
