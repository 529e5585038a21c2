package common

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/session"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// targetArgs lists, in priority order, the arguments that name what a tool
// acts on.
var targetArgs = []string{"messageId", "to", "filePath", "sql", "query"}

// InstrumentedToolHandler wraps a tool handler with a span, metrics and
// audit logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return InstrumentedToolHandlerWithService(toolName, "", "", sc, handler)
}

// InstrumentedToolHandlerWithService is like InstrumentedToolHandler but also
// tags the span and audit record with the backend service and operation the
// tool drives.
func InstrumentedToolHandlerWithService(
	toolName string,
	serviceName string,
	operation string,
	sc *server.ServerContext,
	handler ToolHandler,
) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := session.IDFromContext(ctx)

		b := instrumentation.NewSpanAttributeBuilder().WithSession(sessionID)
		if serviceName != "" {
			b.WithService(serviceName).WithOperation(operation)
		}
		ctx, span := instrumentation.StartToolSpan(ctx, toolName, b.Build()...)

		invocation := instrumentation.NewToolInvocation(toolName).
			WithSession(sessionID).
			WithSpanContext(ctx)
		if serviceName != "" {
			invocation.WithService(serviceName, operation)
		}
		if target := targetFromArgs(request.GetArguments()); target != "" {
			invocation.WithTarget(target)
		}

		result, err := handler(ctx, request)

		status := instrumentation.StatusSuccess
		spanErr := err
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.CompleteWithError(err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			spanErr = errors.New(resultText(result))
			invocation.CompleteWithError(spanErr)
		default:
			invocation.CompleteSuccess()
		}
		instrumentation.EndSpan(span, spanErr)

		sc.Metrics().RecordToolInvocationWithSession(ctx, toolName, status, sessionID, invocation.Duration)
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}

func targetFromArgs(args map[string]any) string {
	for _, key := range targetArgs {
		if v, ok := args[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// resultText returns the text of the first text content of result.
func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "tool returned an error result"
}
