// Package google_tools provides MCP tools for authorizing Gmail access from
// inside an MCP session.
//
// The flow:
//  1. Call google_get_auth_url and open the returned URL
//  2. Sign in and grant access
//  3. Copy the code parameter from the address bar of the page Google
//     redirects to
//  4. Call google_save_auth_code with the code
//
// The token is saved to the same file `inboxquery auth` writes, and Gmail
// tools pick it up on their next call.
package google_tools
