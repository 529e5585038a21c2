package gmail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxquery/internal/gmail"
	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/tools/common"
)

// RegisterGmailTools registers all Gmail-related tools with the MCP server
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterEmailTools(s, sc); err != nil {
		return fmt.Errorf("failed to register email tools: %w", err)
	}

	if err := RegisterAnalyzeTools(s, sc); err != nil {
		return fmt.Errorf("failed to register analyze tools: %w", err)
	}

	return nil
}

// Tools lists the tools RegisterGmailTools adds, for documentation.
func Tools() []mcp.Tool {
	return append(emailTools(), analyzeQueryTool())
}

func gmailHandler(sc *server.ServerContext, name, operation string, h func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)) common.ToolHandler {
	return common.InstrumentedToolHandlerWithService(name, instrumentation.ServiceGmail, operation, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return h(ctx, request, sc)
		})
}

// client returns the Gmail client or a tool error explaining why there is
// none.
func client(ctx context.Context, sc *server.ServerContext) (*gmail.Client, *mcp.CallToolResult) {
	c, err := sc.GmailClient(ctx)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to create Gmail client: %v", err))
	}
	return c, nil
}
