// Package gmail_tools provides MCP (Model Context Protocol) tools for interacting with Gmail.
//
// Tools:
//   - gmail_send_email: send a plain-text or HTML email, optionally with attachments
//   - gmail_search_emails: search a mailbox and return normalized message records
//   - gmail_get_message_details: headers, labels and snippet of one message
//   - gmail_get_message_body: text or markdown body of one message
//   - gmail_delete_message: permanently delete one or more messages
//   - gmail_analyze_query: ask the language model to interpret a request
//
// Arguments are validated before the Gmail client is created, so an invalid
// body type or a missing attachment never reaches the provider.
//
// Example usage:
//
//	gmail_search_emails(query: "from:billing@example.com", label: "INBOX", maxResults: 20)
//	gmail_delete_message(messageId: ["msg1", "msg2"])
package gmail_tools
