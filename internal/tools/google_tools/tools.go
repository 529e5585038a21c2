package google_tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxquery/internal/google"
	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/tools/common"
)

func getAuthURLTool() mcp.Tool {
	return mcp.NewTool("google_get_auth_url",
		mcp.WithDescription("Get the OAuth URL to authorize Gmail access"),
	)
}

func saveAuthCodeTool() mcp.Tool {
	return mcp.NewTool("google_save_auth_code",
		mcp.WithDescription("Save the OAuth authorization code to complete Gmail authorization"),
		mcp.WithString("authCode",
			mcp.Required(),
			mcp.Description("The code parameter of the page Google redirected to"),
		),
	)
}

// Tools returns the definitions of every tool in this package.
func Tools() []mcp.Tool {
	return []mcp.Tool{getAuthURLTool(), saveAuthCodeTool()}
}

// RegisterGoogleTools registers the Google OAuth tools with the MCP server.
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	s.AddTool(getAuthURLTool(), common.InstrumentedToolHandler("google_get_auth_url", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetAuthURL(ctx, request, sc)
		}))

	s.AddTool(saveAuthCodeTool(), common.InstrumentedToolHandlerWithService("google_save_auth_code",
		instrumentation.ServiceGmail, instrumentation.OperationRefresh, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSaveAuthCode(ctx, request, sc)
		}))

	return nil
}

func handleGetAuthURL(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	creds := sc.Credentials()
	if creds == nil {
		return mcp.NewToolResultError(server.ErrNoCredentials.Error()), nil
	}

	authURL, err := creds.AuthURL(uuid.NewString())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to build authorization URL: %v", err)), nil
	}

	result := fmt.Sprintf(`To authorize Gmail access:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account and grant access
3. Google redirects to %s, which will not load. Copy the value of the code parameter from the address bar

4. Call the google_save_auth_code tool with the code to complete authorization`, authURL, google.ManualRedirectURL)

	return mcp.NewToolResultText(result), nil
}

func handleSaveAuthCode(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	authCode := common.StringArg(request.GetArguments(), "authCode")
	if authCode == "" {
		return mcp.NewToolResultError("authCode is required"), nil
	}

	creds := sc.Credentials()
	if creds == nil {
		return mcp.NewToolResultError(server.ErrNoCredentials.Error()), nil
	}

	if err := creds.SaveAuthCode(ctx, authCode); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save authorization code: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Authorization successful! Token saved to %s. Gmail tools are ready to use.", creds.TokenFile())), nil
}
