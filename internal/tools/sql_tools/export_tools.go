package sql_tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxquery/internal/dashboard"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/sqlstore"
	"github.com/teemow/inboxquery/internal/tools/common"
)

func exportForDashTool() mcp.Tool {
	return mcp.NewTool("sql_export_for_dash",
		mcp.WithDescription("Write the last result and its SQL to the data directory"),
	)
}

func showPlotTool() mcp.Tool {
	return mcp.NewTool("sql_show_plot",
		mcp.WithDescription("Render the last result as a standalone HTML chart"),
		mcp.WithString("xColumn",
			mcp.Required(),
			mcp.Description("Column for the x axis"),
		),
		mcp.WithString("yColumn",
			mcp.Required(),
			mcp.Description("Column for the y axis"),
		),
		mcp.WithString("kind",
			mcp.Description("Chart type: bar (default), line or scatter"),
			mcp.Enum(string(dashboard.KindBar), string(dashboard.KindLine), string(dashboard.KindScatter)),
		),
	)
}

func handleExportForDash(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	_, sess, err := state(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	last, ok := sess.LastResult()
	if !ok || last.Set.Empty() {
		return mcp.NewToolResultError(MsgNoExport), nil
	}

	cfg := sc.Config()
	if err := sqlstore.Export(last.Set, last.SQL, cfg.ResultCSVPath(), cfg.ResponseTextPath()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error exporting: %v", err)), nil
	}
	return mcp.NewToolResultText(MsgExported), nil
}

func handleShowPlot(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	kind, err := dashboard.ParseKind(common.StringArg(args, "kind"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	_, sess, err := state(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	last, ok := sess.LastResult()
	if !ok || last.Set.Empty() {
		return mcp.NewToolResultError(MsgNoPlot), nil
	}

	path := sc.Config().PlotPath()
	err = dashboard.WritePlot(path, kind, last.Set, common.StringArg(args, "xColumn"), common.StringArg(args, "yColumn"))
	switch {
	case errors.Is(err, dashboard.ErrInvalidColumns):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("Error generating graph: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Graph generated successfully. Open `%s` to view it.", path)), nil
}
