package sql_tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/session"
	"github.com/teemow/inboxquery/internal/sqlstore"
	"github.com/teemow/inboxquery/internal/tools/common"
)

// Messages returned when a session has nothing to work with yet.
const (
	MsgNoUpload  = "No CSV file uploaded yet. Please upload a file using upload_csv."
	MsgNoTable   = "No table uploaded."
	MsgNoResult  = "No result to display."
	MsgNoExport  = "No result to export."
	MsgNoPlot    = "No data available to plot. Please run a query first."
	MsgNoSQL     = "[NO SQL GENERATED]"
	MsgExported  = "Result exported for Dash successfully."
	defaultHeadN = 5
)

var errNoStore = errors.New("SQL store is not configured")

type handlerFunc func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)

type toolDef struct {
	tool      mcp.Tool
	service   string
	operation string
	handler   handlerFunc
}

func definitions() []toolDef {
	return []toolDef{
		{uploadCSVTool(), instrumentation.ServiceSQLite, instrumentation.OperationLoad, handleUploadCSV},
		{nlToSQLTool(), instrumentation.ServiceLLM, instrumentation.OperationComplete, handleNLToSQL},
		{runManualTool(), instrumentation.ServiceSQLite, instrumentation.OperationQuery, handleRunManual},
		{showAnswerTool(), instrumentation.ServiceSQLite, instrumentation.OperationGet, handleShowAnswer},
		{showTableHeadTool(), instrumentation.ServiceSQLite, instrumentation.OperationQuery, handleShowTableHead},
		{exportForDashTool(), instrumentation.ServiceSQLite, instrumentation.OperationExport, handleExportForDash},
		{showPlotTool(), instrumentation.ServiceSQLite, instrumentation.OperationExport, handleShowPlot},
	}
}

// RegisterSQLTools registers the CSV and query tools with the MCP server
func RegisterSQLTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	for _, d := range definitions() {
		h := d.handler
		s.AddTool(d.tool, common.InstrumentedToolHandlerWithService(d.tool.Name, d.service, d.operation, sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return h(ctx, request, sc)
			}))
	}
	return nil
}

// Tools lists the tools RegisterSQLTools adds, for documentation.
func Tools() []mcp.Tool {
	defs := definitions()
	tools := make([]mcp.Tool, len(defs))
	for i, d := range defs {
		tools[i] = d.tool
	}
	return tools
}

// state returns the store and the caller's session.
func state(ctx context.Context, sc *server.ServerContext) (*sqlstore.Store, *session.Session, error) {
	store := sc.Store()
	if store == nil {
		return nil, nil, errNoStore
	}
	return store, sc.Sessions().FromContext(ctx), nil
}

// publish stores rs as the session's latest result, notifies the dashboard
// and writes the export files. An empty result is stored but not exported.
func publish(sc *server.ServerContext, s *session.Session, query string, rs *sqlstore.ResultSet) error {
	sc.Sessions().Record(s, query, rs)
	cfg := sc.Config()
	err := sqlstore.Export(rs, query, cfg.ResultCSVPath(), cfg.ResponseTextPath())
	if errors.Is(err, sqlstore.ErrNoRows) {
		return nil
	}
	return err
}
