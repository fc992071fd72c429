package gmail

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blixt/calendar-assistant/mcpclient"
)

type fakeCaller struct {
	names []string
	args  []string
	reply string
}

func (f *fakeCaller) CallTool(ctx context.Context, name string, args any) (*mcpclient.Result, error) {
	data, _ := json.Marshal(args)
	f.names = append(f.names, name)
	f.args = append(f.args, string(data))
	return &mcpclient.Result{Texts: []string{f.reply}}, nil
}

func TestClient(t *testing.T) {
	f := &fakeCaller{reply: `Messages: [{"id":"m1","subject":"Hello"}]`}
	c := New(f)
	ctx := context.Background()

	_, err := c.SendEmail(ctx, Draft{To: []string{"a@example.com"}, Subject: "Hi", Body: "Hello there"})
	require.NoError(t, err)
	_, err = c.ReadEmail(ctx, "m1")
	require.NoError(t, err)
	out, err := c.SearchEmails(ctx, Search{Query: "from:boss", MaxResults: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"m1","subject":"Hello"}]`, string(out))
	_, err = c.ModifyEmail(ctx, LabelChange{MessageID: "m1", LabelIDs: []string{"STARRED"}})
	require.NoError(t, err)
	_, err = c.DeleteEmail(ctx, "m1")
	require.NoError(t, err)

	assert.Equal(t, []string{"send_email", "read_email", "search_emails", "modify_email", "delete_email"}, f.names)
	assert.JSONEq(t, `{"to":["a@example.com"],"subject":"Hi","body":"Hello there"}`, f.args[0])
	assert.JSONEq(t, `{"messageId":"m1"}`, f.args[1])
	assert.JSONEq(t, `{"query":"from:boss","maxResults":5}`, f.args[2])
	assert.JSONEq(t, `{"messageId":"m1","labelIds":["STARRED"]}`, f.args[3])
}

func TestSendEmail_RequiresRecipient(t *testing.T) {
	f := &fakeCaller{}
	_, err := New(f).SendEmail(context.Background(), Draft{Subject: "Hi"})
	assert.Error(t, err)
	assert.Empty(t, f.names)
}
