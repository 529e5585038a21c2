package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	gmail "google.golang.org/api/gmail/v1"
)

// fakeAPI is an in-memory MessagesAPI. List responses are served from a
// queue; every call is recorded.
type fakeAPI struct {
	mu sync.Mutex

	pages   []*gmail.ListMessagesResponse
	listErr error

	messages map[string]*gmail.Message
	getErr   map[string]error

	sendErr   error
	deleteErr map[string]error

	listCalls []ListRequest
	getCalls  []string
	sent      []string
	deleted   []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		messages:  map[string]*gmail.Message{},
		getErr:    map[string]error{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeAPI) List(_ context.Context, req ListRequest) (*gmail.ListMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, req)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.pages) == 0 {
		return &gmail.ListMessagesResponse{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeAPI) Get(_ context.Context, id string) (*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, id)
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return &gmail.Message{Id: id, Snippet: "snippet " + id}, nil
}

func (f *fakeAPI) Send(_ context.Context, raw string) (*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, raw)
	return &gmail.Message{Id: fmt.Sprintf("sent-%d", len(f.sent))}, nil
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

// page builds a list response with the given ids and next token.
func page(next string, ids ...string) *gmail.ListMessagesResponse {
	resp := &gmail.ListMessagesResponse{NextPageToken: next}
	for _, id := range ids {
		resp.Messages = append(resp.Messages, &gmail.Message{Id: id})
	}
	return resp
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func rawB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
