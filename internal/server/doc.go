// Package server holds the runtime shared by both MCP servers.
//
// ServerContext owns the long-lived dependencies the tools need: the lazily
// built Gmail client, the SQLite store, the per-client session manager, the
// language model, and the metrics and audit recorders.
//
// HTTPServer exposes an MCP server over the streamable HTTP transport at
// /mcp, with /healthz and /readyz from HealthChecker. MetricsServer serves
// Prometheus metrics on a separate port.
package server
