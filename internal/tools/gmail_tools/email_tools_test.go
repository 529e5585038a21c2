package gmail_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxquery/internal/config"
	"github.com/teemow/inboxquery/internal/gmail"
	"github.com/teemow/inboxquery/internal/server"
)

type fakeMessages struct {
	mu sync.Mutex

	pages     []*gmailapi.ListMessagesResponse
	messages  map[string]*gmailapi.Message
	deleteErr map[string]error
	sendErr   error

	listCalls []gmail.ListRequest
	sent      []string
	deleted   []string
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		messages:  map[string]*gmailapi.Message{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeMessages) List(_ context.Context, req gmail.ListRequest) (*gmailapi.ListMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, req)
	if len(f.pages) == 0 {
		return &gmailapi.ListMessagesResponse{}, nil
	}
	p := f.pages[0]
	f.pages = f.pages[1:]
	return p, nil
}

func (f *fakeMessages) Get(_ context.Context, id string) (*gmailapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return &gmailapi.Message{Id: id}, nil
}

func (f *fakeMessages) Send(_ context.Context, raw string) (*gmailapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, raw)
	return &gmailapi.Message{Id: fmt.Sprintf("sent-%d", len(f.sent))}, nil
}

func (f *fakeMessages) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestContext(t *testing.T, api gmail.MessagesAPI) *server.ServerContext {
	t.Helper()
	sc := server.NewServerContext(context.Background(), &config.Config{},
		server.WithGmailClient(gmail.NewClient(api)))
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestHandleSendEmail(t *testing.T) {
	dir := t.TempDir()
	attachment := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(attachment, []byte("numbers"), 0o600))
	missing := filepath.Join(dir, "missing.pdf")

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		wantText  string
		wantSent  int
	}{
		{
			name:     "plain text",
			args:     map[string]any{"to": "a@example.com", "subject": "Hi", "body": "Hello"},
			wantText: "Email sent successfully! Message ID: sent-1",
			wantSent: 1,
		},
		{
			name:     "html with attachment",
			args:     map[string]any{"to": "a@example.com, b@example.com", "subject": "Hi", "body": "<p>Hello</p>", "bodyType": "html", "attachmentPaths": []any{attachment}},
			wantText: "Email sent successfully! Message ID: sent-1",
			wantSent: 1,
		},
		{
			name:     "empty subject and body",
			args:     map[string]any{"to": "a@example.com", "subject": "", "body": ""},
			wantText: "Email sent successfully! Message ID: sent-1",
			wantSent: 1,
		},
		{
			name:      "invalid body type",
			args:      map[string]any{"to": "a@example.com", "subject": "Hi", "body": "Hello", "bodyType": "rtf"},
			wantError: true,
			wantText:  gmail.ErrInvalidBodyType.Error(),
		},
		{
			name:      "missing attachment",
			args:      map[string]any{"to": "a@example.com", "subject": "Hi", "body": "Hello", "attachmentPaths": missing},
			wantError: true,
			wantText:  "File not found - " + missing,
		},
		{
			name:      "missing recipient",
			args:      map[string]any{"subject": "Hi", "body": "Hello"},
			wantError: true,
			wantText:  "'to' field is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeMessages()
			sc := newTestContext(t, api)

			res, err := handleSendEmail(context.Background(), callRequest(tt.args), sc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, res.IsError)
			assert.Equal(t, tt.wantText, resultText(t, res))
			assert.Len(t, api.sent, tt.wantSent)
		})
	}
}

func TestHandleSendEmail_ProviderFailure(t *testing.T) {
	api := newFakeMessages()
	api.sendErr = errors.New("quota exceeded")
	sc := newTestContext(t, api)

	res, err := handleSendEmail(context.Background(), callRequest(map[string]any{
		"to": "a@example.com", "subject": "Hi", "body": "Hello",
	}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "quota exceeded")
}

func TestHandleSearchEmails(t *testing.T) {
	api := newFakeMessages()
	api.pages = []*gmailapi.ListMessagesResponse{{
		Messages: []*gmailapi.Message{{Id: "m1"}, {Id: "m2"}},
	}}
	api.messages["m1"] = &gmailapi.Message{
		Id:      "m1",
		Snippet: "first",
		Payload: &gmailapi.MessagePart{Headers: []*gmailapi.MessagePartHeader{{Name: "Subject", Value: "Invoice"}}},
	}
	sc := newTestContext(t, api)

	res, err := handleSearchEmails(context.Background(), callRequest(map[string]any{
		"query": "is:unread",
		"label": "sent",
	}), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var got gmail.SearchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "Invoice", got.Messages[0].Subject)
	assert.Equal(t, gmail.NoSubject, got.Messages[1].Subject)
	assert.Nil(t, got.NextPageToken)

	require.Len(t, api.listCalls, 1)
	assert.Equal(t, "is:unread", api.listCalls[0].Query)
	assert.Equal(t, []string{"SENT"}, api.listCalls[0].LabelIDs)
	assert.Equal(t, int64(DefaultMaxResults), api.listCalls[0].PageSize)
}

func TestSearchOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		wantMax *int
		wantErr bool
	}{
		{name: "default cap", args: map[string]any{}, wantMax: gmail.MaxResults(DefaultMaxResults)},
		{name: "explicit cap", args: map[string]any{"maxResults": float64(20)}, wantMax: gmail.MaxResults(20)},
		{name: "zero is unbounded", args: map[string]any{"maxResults": float64(0)}, wantMax: nil},
		{name: "negative", args: map[string]any{"maxResults": float64(-1)}, wantErr: true},
		{name: "unknown label", args: map[string]any{"label": "starred"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := searchOptions(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, opts.MaxResults)
		})
	}
}

func TestHandleSearchEmails_InvalidLabel(t *testing.T) {
	api := newFakeMessages()
	sc := newTestContext(t, api)

	res, err := handleSearchEmails(context.Background(), callRequest(map[string]any{"label": "important"}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "invalid label")
	assert.Empty(t, api.listCalls)
}

func TestHandleDeleteMessage(t *testing.T) {
	t.Run("single success", func(t *testing.T) {
		api := newFakeMessages()
		res, err := handleDeleteMessage(context.Background(), callRequest(map[string]any{"messageId": "abc"}), newTestContext(t, api))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "Email with ID 'abc' successfully deleted.", resultText(t, res))
		assert.Equal(t, []string{"abc"}, api.deleted)
	})

	t.Run("single failure", func(t *testing.T) {
		api := newFakeMessages()
		api.deleteErr["abc"] = errors.New("not found")
		res, err := handleDeleteMessage(context.Background(), callRequest(map[string]any{"messageId": "abc"}), newTestContext(t, api))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Equal(t, "Error deleting email with ID 'abc': not found", resultText(t, res))
	})

	t.Run("batch with one failure", func(t *testing.T) {
		api := newFakeMessages()
		api.deleteErr["b"] = errors.New("not found")
		res, err := handleDeleteMessage(context.Background(), callRequest(map[string]any{"messageId": []any{"a", "b", "c"}}), newTestContext(t, api))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, []string{"a", "c"}, api.deleted)

		var out struct {
			Total      int `json:"total"`
			Successful int `json:"successful"`
			Failed     int `json:"failed"`
		}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
		assert.Equal(t, 3, out.Total)
		assert.Equal(t, 2, out.Successful)
		assert.Equal(t, 1, out.Failed)
	})

	t.Run("missing id", func(t *testing.T) {
		api := newFakeMessages()
		res, err := handleDeleteMessage(context.Background(), callRequest(map[string]any{}), newTestContext(t, api))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "messageId is required")
	})
}

func TestHandleGetMessageBody(t *testing.T) {
	api := newFakeMessages()
	api.messages["m1"] = &gmailapi.Message{
		Id: "m1",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailapi.MessagePartBody{Data: "aGVsbG8="},
		},
	}
	sc := newTestContext(t, api)

	res, err := handleGetMessageBody(context.Background(), callRequest(map[string]any{"messageId": "m1"}), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, "hello", resultText(t, res))

	res, err = handleGetMessageBody(context.Background(), callRequest(map[string]any{"messageId": "m1", "format": "pdf"}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetMessageDetails(t *testing.T) {
	api := newFakeMessages()
	api.messages["m1"] = &gmailapi.Message{Id: "m1", LabelIds: []string{"INBOX", "STARRED"}}
	sc := newTestContext(t, api)

	res, err := handleGetMessageDetails(context.Background(), callRequest(map[string]any{"messageId": "m1"}), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var rec gmail.EmailRecord
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &rec))
	assert.Equal(t, "m1", rec.ID)
	assert.True(t, rec.Starred)
	assert.Equal(t, "INBOX, STARRED", rec.Labels)
}

func TestSplitEmailAddresses(t *testing.T) {
	assert.Nil(t, splitEmailAddresses(""))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, splitEmailAddresses(" a@example.com, ,b@example.com "))
}
