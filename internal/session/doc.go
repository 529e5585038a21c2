// Package session keeps per-client query state for the SQL server.
//
// Each MCP client session gets its own Session holding the uploaded table
// and the last query result; stdio clients share DefaultID. Storing a result
// through Manager.Record broadcasts an Event on the Hub, which the dashboard
// relays to browsers over Server-Sent Events.
package session
