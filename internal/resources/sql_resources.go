package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/sqlstore"
)

// Resource URIs.
const (
	TableSchemaURI = "sql://table/schema"
	LastResultURI  = "sql://result/last"
)

var (
	errNoTable  = errors.New("no table uploaded in this session")
	errNoResult = errors.New("no result in this session")
)

func tableSchemaResource() mcp.Resource {
	return mcp.NewResource(
		TableSchemaURI,
		"Uploaded Table Schema",
		mcp.WithResourceDescription("Columns and inferred types of the table uploaded in this session"),
		mcp.WithMIMEType("application/json"),
	)
}

func lastResultResource() mcp.Resource {
	return mcp.NewResource(
		LastResultURI,
		"Last Query Result",
		mcp.WithResourceDescription("The SQL and rows of the last query run in this session"),
		mcp.WithMIMEType("application/json"),
	)
}

// Resources returns the definitions of every SQL resource.
func Resources() []mcp.Resource {
	return []mcp.Resource{tableSchemaResource(), lastResultResource()}
}

// RegisterSQLResources registers the session-scoped table and result
// resources.
func RegisterSQLResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	s.AddResource(tableSchemaResource(), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleTableSchema(ctx, request, sc)
	})
	s.AddResource(lastResultResource(), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleLastResult(ctx, request, sc)
	})
	return nil
}

type tableSchema struct {
	Table   string            `json:"table"`
	Columns []sqlstore.Column `json:"columns"`
}

func handleTableSchema(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	store := sc.Store()
	if store == nil {
		return nil, errors.New("SQL store is not configured")
	}

	table := sc.Sessions().FromContext(ctx).Table()
	if table == "" {
		return nil, errNoTable
	}

	cols, err := store.Schema(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return jsonContents(request.Params.URI, tableSchema{Table: table, Columns: cols})
}

func handleLastResult(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	last, ok := sc.Sessions().FromContext(ctx).LastResult()
	if !ok {
		return nil, errNoResult
	}
	return jsonContents(request.Params.URI, last)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
