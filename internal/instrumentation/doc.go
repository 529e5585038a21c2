// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for inboxquery.
//
// # Metrics
//
// Backends (gmail, sqlite, llm):
//   - backend_operations_total: counter by service, operation, status
//   - backend_operation_duration_seconds: histogram by service, operation, status
//   - oauth_token_refresh_total: Gmail credential refreshes and consent flows by result
//   - sql_result_rows: histogram of rows returned by executed SQL
//
// MCP tools:
//   - mcp_tool_invocations_total: counter by tool and status
//   - mcp_tool_duration_seconds: histogram by tool and status
//
// Dashboard:
//   - http_requests_total / http_request_duration_seconds: by method, path, status
//   - dashboard_subscribers: connected event streams
//
// # Tracing
//
// Spans are named tool.<tool> for MCP invocations and <service>.<operation>
// for backend calls. Tracing is off unless TRACING_EXPORTER is set.
//
// # Usage
//
//	cfg, err := instrumentation.LoadConfig()
//	provider, err := instrumentation.NewProvider(ctx, cfg)
//	defer provider.Shutdown(ctx)
//
//	err = instrumentation.ObserveBackend(ctx, provider.Metrics(), instrumentation.ServiceSQLite, instrumentation.OperationQuery,
//		func(ctx context.Context) error {
//			rows, err := db.QueryxContext(ctx, query)
//			...
//		})
package instrumentation
