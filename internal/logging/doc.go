// Package logging provides structured logging utilities for inboxquery.
//
// The process logger is built once by NewLogger, either a tint console
// handler or a JSON handler, and always writes to stderr so that the stdio
// MCP transport owns stdout.
//
// # Usage Patterns
//
// Scope a logger to an operation:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.search")
//	logger.Info("search finished", logging.Status(logging.StatusSuccess))
//
// Recipients and tokens are never logged verbatim:
//
//	logger.Info("sending", logging.Recipients(to))
package logging
