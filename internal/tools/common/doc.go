// Package common holds helpers shared by the MCP tool packages: the
// instrumentation wrapper every tool is registered through and argument
// parsing for numbers and per-call timeouts.
package common
