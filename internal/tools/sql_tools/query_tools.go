package sql_tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxquery/internal/llm"
	"github.com/teemow/inboxquery/internal/logging"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/sqlstore"
	"github.com/teemow/inboxquery/internal/tools/common"
)

func uploadCSVTool() mcp.Tool {
	return mcp.NewTool("sql_upload_csv",
		mcp.WithDescription("Load a CSV file into a SQLite table named after the file"),
		mcp.WithString("filePath",
			mcp.Required(),
			mcp.Description("Path to the CSV file"),
		),
	)
}

func nlToSQLTool() mcp.Tool {
	return mcp.NewTool("sql_nl_to_sql",
		mcp.WithDescription("Translate a natural-language question into SQL over the uploaded table and run it"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithNumber(common.TimeoutArg,
			mcp.Description("Give up after this many seconds (default: the server's request timeout)"),
		),
	)
}

func runManualTool() mcp.Tool {
	return mcp.NewTool("sql_run_manual",
		mcp.WithDescription("Run a SQL statement as written"),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement"),
		),
	)
}

func showAnswerTool() mcp.Tool {
	return mcp.NewTool("sql_show_answer",
		mcp.WithDescription("Show the last query result"),
	)
}

func showTableHeadTool() mcp.Tool {
	return mcp.NewTool("sql_show_table_head",
		mcp.WithDescription("Show the first rows of the uploaded table"),
		mcp.WithNumber("n",
			mcp.Description(fmt.Sprintf("Number of rows (default: %d)", defaultHeadN)),
		),
	)
}

func handleUploadCSV(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	path := common.StringArg(request.GetArguments(), "filePath")
	if path == "" {
		return mcp.NewToolResultError("filePath is required"), nil
	}

	store, sess, err := state(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	loaded, err := store.Import(ctx, path, sc.Config().DataDir)
	if err != nil {
		if errors.Is(err, sqlstore.ErrFileNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("CSV uploaded, but failed to convert to SQLite table: %v", err)), nil
	}

	sess.SetTable(loaded.Table)
	sc.Logger().InfoContext(ctx, "table uploaded",
		slog.String(logging.KeySession, sess.ID),
		logging.Table(loaded.Table),
		logging.Rows(loaded.Rows))

	return mcp.NewToolResultText(fmt.Sprintf("CSV file loaded and converted to table: **%s**", loaded.Table)), nil
}

func handleNLToSQL(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	question := common.StringArg(args, "query")
	if question == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	store, sess, err := state(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	table := sess.Table()
	if table == "" {
		return mcp.NewToolResultError(MsgNoUpload), nil
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

	var query string
	rs, err := func() (*sqlstore.ResultSet, error) {
		cols, err := store.Schema(ctx, table)
		if err != nil {
			return nil, err
		}
		reply, err := completer.Complete(ctx, llm.SQLPrompt(table, sqlstore.SchemaText(cols), question))
		if err != nil {
			return nil, err
		}
		query = llm.ExtractSQL(reply)
		if query == "" {
			return nil, llm.ErrEmptyResponse
		}
		return store.Query(ctx, query)
	}()
	if err != nil {
		return mcp.NewToolResultError(queryFailure(query, err)), nil
	}

	if err := publish(sc, sess, query, rs); err != nil {
		return mcp.NewToolResultError(queryFailure(query, err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("**Generated SQL Query:**\n```sql\n%s\n```\n\n**Query Result:**\n%s", query, rs.Markdown())), nil
}

func queryFailure(query string, err error) string {
	if query == "" {
		query = MsgNoSQL
	}
	return fmt.Sprintf("**Generated SQL Query:**\n```sql\n%s\n```\n\n**Error executing SQL query:**\n```\n%v\n```", query, err)
}

func handleRunManual(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	query := common.StringArg(request.GetArguments(), "sql")
	if query == "" {
		return mcp.NewToolResultError("sql is required"), nil
	}

	store, sess, err := state(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rs, err := store.Query(ctx, query)
	if err == nil {
		err = publish(sc, sess, query, rs)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error running SQL manually:\n%v", err)), nil
	}
	return mcp.NewToolResultText(rs.Text()), nil
}

func handleShowAnswer(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	_, sess, err := state(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	last, ok := sess.LastResult()
	if !ok || last.Set.Empty() {
		return mcp.NewToolResultError(MsgNoResult), nil
	}
	return mcp.NewToolResultText(last.Set.Text()), nil
}

func handleShowTableHead(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	n, err := common.IntArg(request.GetArguments(), "n", defaultHeadN)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	store, sess, err := state(ctx, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	table := sess.Table()
	if table == "" {
		return mcp.NewToolResultError(MsgNoTable), nil
	}

	rs, err := store.Head(ctx, table, n)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(rs.Text()), nil
}
