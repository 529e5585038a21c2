// Package cmd implements the command-line interface for inboxquery.
//
// This package provides the following commands:
//   - serve gmail: Start the Gmail MCP server
//   - serve sql: Start the CSV and natural-language SQL MCP server with its dashboard
//   - auth: Run the Google consent flow and store the token
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
