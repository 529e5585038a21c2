package gmail_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/llm"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/tools/common"
)

func analyzeQueryTool() mcp.Tool {
	return mcp.NewTool("gmail_analyze_query",
		mcp.WithDescription("Ask the language model to interpret a Gmail request"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The request to analyze, in natural language"),
		),
		mcp.WithNumber(common.TimeoutArg,
			mcp.Description("Give up after this many seconds (default: the server's request timeout)"),
		),
	)
}

// RegisterAnalyzeTools registers the language model tools with the MCP server
func RegisterAnalyzeTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	handler := common.InstrumentedToolHandlerWithService("gmail_analyze_query", instrumentation.ServiceLLM, instrumentation.OperationComplete, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAnalyzeQuery(ctx, request, sc)
		})
	s.AddTool(analyzeQueryTool(), handler)
	return nil
}

func handleAnalyzeQuery(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query := strings.TrimSpace(common.StringArg(args, "query"))
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	completer, err := sc.Completer()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel, err := common.WithTimeout(ctx, args, sc.Config().RequestTimeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer cancel()

	reply, err := completer.Complete(ctx, llm.AnalyzePrompt(query))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error querying Claude: %v", err)), nil
	}
	return mcp.NewToolResultText(reply), nil
}
