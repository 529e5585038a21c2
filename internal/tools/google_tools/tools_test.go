package google_tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxquery/internal/config"
	"github.com/teemow/inboxquery/internal/google"
	"github.com/teemow/inboxquery/internal/server"
)

func newCredentials(t *testing.T) *google.CredentialProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"granted","refresh_token":"r","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	secret := filepath.Join(dir, "client-secret.json")
	body := fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"csecret",`+
		`"auth_uri":"https://accounts.example.com/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, srv.URL+"/token")
	require.NoError(t, os.WriteFile(secret, []byte(body), 0o600))

	return google.NewGmailCredentials(secret, filepath.Join(dir, "tokens"), "")
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest, *server.ServerContext) (*mcp.CallToolResult, error), sc *server.ServerContext, args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req, sc)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text, res.IsError
}

func TestHandleGetAuthURL(t *testing.T) {
	sc := server.NewServerContext(context.Background(), &config.Config{}, server.WithCredentials(newCredentials(t)))

	out, isErr := call(t, handleGetAuthURL, sc, nil)
	assert.False(t, isErr)
	assert.Contains(t, out, "https://accounts.example.com/auth?")
	assert.Contains(t, out, "client_id=cid")
	assert.Contains(t, out, "google_save_auth_code")

	bare := server.NewServerContext(context.Background(), &config.Config{})
	out, isErr = call(t, handleGetAuthURL, bare, nil)
	assert.True(t, isErr)
	assert.Equal(t, server.ErrNoCredentials.Error(), out)
}

func TestHandleSaveAuthCode(t *testing.T) {
	creds := newCredentials(t)
	sc := server.NewServerContext(context.Background(), &config.Config{}, server.WithCredentials(creds))

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
		want    string
	}{
		{name: "missing code", args: map[string]any{}, wantErr: true, want: "authCode is required"},
		{name: "rejected code", args: map[string]any{"authCode": "bad-code"}, wantErr: true, want: "Failed to save authorization code"},
		{name: "accepted code", args: map[string]any{"authCode": "good-code"}, want: "Authorization successful!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, isErr := call(t, handleSaveAuthCode, sc, tt.args)
			assert.Equal(t, tt.wantErr, isErr)
			assert.Contains(t, out, tt.want)
		})
	}

	assert.True(t, creds.HasToken())
}

func TestRegisterGoogleTools(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	sc := server.NewServerContext(context.Background(), &config.Config{})
	require.NoError(t, RegisterGoogleTools(s, sc))

	registered := s.ListTools()
	assert.Len(t, registered, 2)
	for _, tool := range Tools() {
		assert.Contains(t, registered, tool.Name)
	}
}
