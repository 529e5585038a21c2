package resources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxquery/internal/config"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/session"
	"github.com/teemow/inboxquery/internal/sqlstore"
)

func newContext(t *testing.T) (*server.ServerContext, *sqlstore.Store) {
	t.Helper()
	store, err := sqlstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	sc := server.NewServerContext(context.Background(), &config.Config{}, server.WithStore(store))
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, store
}

func readRequest(uri string) mcp.ReadResourceRequest {
	var req mcp.ReadResourceRequest
	req.Params.URI = uri
	return req
}

func contentsText(t *testing.T, contents []mcp.ResourceContents) string {
	t.Helper()
	require.Len(t, contents, 1)
	tc, ok := contents[0].(*mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", tc.MIMEType)
	return tc.Text
}

func TestTableSchema(t *testing.T) {
	sc, store := newContext(t)
	ctx := context.Background()

	_, err := handleTableSchema(ctx, readRequest(TableSchemaURI), sc)
	assert.ErrorIs(t, err, errNoTable)

	csvPath := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("region,units\nnorth,10\n"), 0o644))
	_, err = store.LoadCSV(ctx, csvPath, "sales")
	require.NoError(t, err)
	sc.Sessions().Get(session.DefaultID).SetTable("sales")

	contents, err := handleTableSchema(ctx, readRequest(TableSchemaURI), sc)
	require.NoError(t, err)

	var got tableSchema
	require.NoError(t, json.Unmarshal([]byte(contentsText(t, contents)), &got))
	assert.Equal(t, "sales", got.Table)
	assert.Equal(t, []sqlstore.Column{{Name: "region", Type: "TEXT"}, {Name: "units", Type: "INTEGER"}}, got.Columns)
}

func TestLastResult(t *testing.T) {
	sc, _ := newContext(t)
	ctx := context.Background()

	_, err := handleLastResult(ctx, readRequest(LastResultURI), sc)
	assert.ErrorIs(t, err, errNoResult)

	sess := sc.Sessions().Get(session.DefaultID)
	sc.Sessions().Record(sess, "SELECT 1 AS one", &sqlstore.ResultSet{Columns: []string{"one"}, Rows: [][]any{{int64(1)}}})

	contents, err := handleLastResult(ctx, readRequest(LastResultURI), sc)
	require.NoError(t, err)

	var got struct {
		SQL    string              `json:"sql"`
		Result *sqlstore.ResultSet `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(contentsText(t, contents)), &got))
	assert.Equal(t, "SELECT 1 AS one", got.SQL)
	assert.Equal(t, []string{"one"}, got.Result.Columns)
}
