// Package resources provides MCP resources for the query server.
// Resources are read-only views that MCP clients can fetch next to the
// tools. They are scoped to the calling MCP session, so each client sees its
// own uploaded table and last result.
package resources
