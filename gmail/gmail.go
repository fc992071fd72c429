// Package gmail exposes the email tool server as typed operations.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/blixt/calendar-assistant/mcpclient"
)

// Caller is the part of *mcpclient.Client used here.
type Caller interface {
	CallTool(ctx context.Context, name string, args any) (*mcpclient.Result, error)
}

type Draft struct {
	To      []string `json:"to" jsonschema_description:"List of recipient email addresses"`
	Subject string   `json:"subject" jsonschema_description:"Email subject"`
	Body    string   `json:"body" jsonschema_description:"Email body content"`
	Cc      []string `json:"cc,omitempty" jsonschema_description:"List of CC recipients"`
	Bcc     []string `json:"bcc,omitempty" jsonschema_description:"List of BCC recipients"`
}

type Search struct {
	Query      string `json:"query" jsonschema_description:"Gmail search query"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema_description:"Maximum number of results to return"`
}

type LabelChange struct {
	MessageID string   `json:"messageId" jsonschema_description:"ID of the email message to modify"`
	LabelIDs  []string `json:"labelIds" jsonschema_description:"List of label IDs to apply"`
}

type Client struct {
	caller Caller
}

func New(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) SendEmail(ctx context.Context, d Draft) (json.RawMessage, error) {
	if len(d.To) == 0 {
		return nil, fmt.Errorf("send_email: at least one recipient is required")
	}
	return c.call(ctx, "send_email", d)
}

func (c *Client) ReadEmail(ctx context.Context, messageID string) (json.RawMessage, error) {
	return c.call(ctx, "read_email", map[string]string{"messageId": messageID})
}

func (c *Client) SearchEmails(ctx context.Context, s Search) (json.RawMessage, error) {
	return c.call(ctx, "search_emails", s)
}

func (c *Client) ModifyEmail(ctx context.Context, change LabelChange) (json.RawMessage, error) {
	return c.call(ctx, "modify_email", change)
}

func (c *Client) DeleteEmail(ctx context.Context, messageID string) (json.RawMessage, error) {
	return c.call(ctx, "delete_email", map[string]string{"messageId": messageID})
}

func (c *Client) call(ctx context.Context, name string, args any) (json.RawMessage, error) {
	res, err := c.caller.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return res.Value(), nil
}
