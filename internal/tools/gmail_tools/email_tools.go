package gmail_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxquery/internal/gmail"
	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/server"
	"github.com/teemow/inboxquery/internal/tools/batch"
	"github.com/teemow/inboxquery/internal/tools/common"
)

// DefaultMaxResults caps a search when the caller gives no maxResults.
const DefaultMaxResults = 100

func sendEmailTool() mcp.Tool {
	return mcp.NewTool("gmail_send_email",
		mcp.WithDescription("Send an email through Gmail, optionally with file attachments"),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body content"),
		),
		mcp.WithString("bodyType",
			mcp.Description("Body content type: 'plain' (default) or 'html'"),
			mcp.Enum(string(gmail.BodyPlain), string(gmail.BodyHTML)),
		),
		mcp.WithString("cc",
			mcp.Description("CC email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("bcc",
			mcp.Description("BCC email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("attachmentPaths",
			mcp.Description("Local file path (string) or array of file paths to attach"),
		),
	)
}

func getMessageDetailsTool() mcp.Tool {
	return mcp.NewTool("gmail_get_message_details",
		mcp.WithDescription("Get the subject, sender, recipients, date, labels and snippet of a Gmail message"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The ID of the message"),
		),
	)
}

func getMessageBodyTool() mcp.Tool {
	return mcp.NewTool("gmail_get_message_body",
		mcp.WithDescription("Get the body of a Gmail message"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The ID of the message"),
		),
		mcp.WithString("format",
			mcp.Description("'text' (default) returns the plain-text body; 'markdown' converts the HTML body"),
			mcp.Enum(string(gmail.FormatText), string(gmail.FormatMarkdown)),
		),
	)
}

func searchEmailsTool() mcp.Tool {
	return mcp.NewTool("gmail_search_emails",
		mcp.WithDescription("Search Gmail messages and return their details"),
		mcp.WithString("query",
			mcp.Description("Gmail search query (e.g., 'from:user@example.com is:unread'). Empty matches everything."),
		),
		mcp.WithString("label",
			mcp.Description("Mailbox to search: ALL, INBOX (default), SENT, DRAFT, SPAM or TRASH"),
			mcp.Enum("ALL", "INBOX", "SENT", "DRAFT", "SPAM", "TRASH"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of messages to return (default: %d, 0 for no limit)", DefaultMaxResults)),
		),
		mcp.WithString("pageToken",
			mcp.Description("Continuation token from a previous search"),
		),
		mcp.WithNumber(common.TimeoutArg,
			mcp.Description("Give up after this many seconds (default: the server's request timeout)"),
		),
	)
}

func deleteMessageTool() mcp.Tool {
	return mcp.NewTool("gmail_delete_message",
		mcp.WithDescription("Permanently delete one or more Gmail messages"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("Message ID (string) or array of message IDs to delete"),
		),
	)
}

func emailTools() []mcp.Tool {
	return []mcp.Tool{
		sendEmailTool(),
		getMessageDetailsTool(),
		getMessageBodyTool(),
		searchEmailsTool(),
		deleteMessageTool(),
	}
}

// RegisterEmailTools registers email-related tools with the MCP server
func RegisterEmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	s.AddTool(sendEmailTool(), gmailHandler(sc, "gmail_send_email", instrumentation.OperationSend, handleSendEmail))
	s.AddTool(getMessageDetailsTool(), gmailHandler(sc, "gmail_get_message_details", instrumentation.OperationGet, handleGetMessageDetails))
	s.AddTool(getMessageBodyTool(), gmailHandler(sc, "gmail_get_message_body", instrumentation.OperationGet, handleGetMessageBody))
	s.AddTool(searchEmailsTool(), gmailHandler(sc, "gmail_search_emails", instrumentation.OperationSearch, handleSearchEmails))
	s.AddTool(deleteMessageTool(), gmailHandler(sc, "gmail_delete_message", instrumentation.OperationDelete, handleDeleteMessage))
	return nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	to := splitEmailAddresses(common.StringArg(args, "to"))
	if len(to) == 0 {
		return mcp.NewToolResultError("'to' field is required"), nil
	}
	subject := common.StringArg(args, "subject")
	body, _ := args["body"].(string)

	bodyType, err := gmail.ParseBodyType(common.StringArg(args, "bodyType"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var attachments []string
	if raw, ok := args["attachmentPaths"]; ok && raw != nil && raw != "" {
		attachments, err = batch.ParseStringOrArray(raw, "attachmentPaths")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	msg := &gmail.EmailMessage{
		To:          to,
		Cc:          splitEmailAddresses(common.StringArg(args, "cc")),
		Bcc:         splitEmailAddresses(common.StringArg(args, "bcc")),
		Subject:     subject,
		Body:        body,
		BodyType:    bodyType,
		Attachments: attachments,
	}
	if err := msg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel, err := common.WithTimeout(ctx, args, sc.Config().RequestTimeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer cancel()

	c, errResult := client(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	messageID, err := c.SendEmail(ctx, msg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error sending email: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Email sent successfully! Message ID: %s", messageID)), nil
}

func handleGetMessageDetails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	messageID := common.StringArg(args, "messageId")
	if messageID == "" {
		return mcp.NewToolResultError("messageId is required"), nil
	}

	ctx, cancel, err := common.WithTimeout(ctx, args, sc.Config().RequestTimeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer cancel()

	c, errResult := client(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	record, err := c.GetMessageDetails(ctx, messageID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get message details: %v", err)), nil
	}
	return jsonResult(record)
}

func handleGetMessageBody(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	messageID := common.StringArg(args, "messageId")
	if messageID == "" {
		return mcp.NewToolResultError("messageId is required"), nil
	}

	format := gmail.BodyFormat(strings.ToLower(common.StringArg(args, "format")))
	if format != "" && format != gmail.FormatText && format != gmail.FormatMarkdown {
		return mcp.NewToolResultError(fmt.Sprintf("invalid format %q, must be 'text' or 'markdown'", format)), nil
	}

	ctx, cancel, err := common.WithTimeout(ctx, args, sc.Config().RequestTimeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer cancel()

	c, errResult := client(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	body, err := c.GetMessageBody(ctx, messageID, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get message body: %v", err)), nil
	}
	return mcp.NewToolResultText(body), nil
}

// searchOptions reads the search arguments. An absent maxResults caps the
// search at DefaultMaxResults and 0 removes the cap.
func searchOptions(args map[string]any) (gmail.SearchOptions, error) {
	label, err := gmail.ParseLabel(common.StringArg(args, "label"))
	if err != nil {
		return gmail.SearchOptions{}, err
	}

	maxResults, err := common.IntArg(args, "maxResults", DefaultMaxResults)
	if err != nil {
		return gmail.SearchOptions{}, err
	}
	if maxResults < 0 {
		return gmail.SearchOptions{}, errors.New("maxResults must not be negative")
	}

	opts := gmail.SearchOptions{
		Query:     common.StringArg(args, "query"),
		Label:     label,
		PageToken: common.StringArg(args, "pageToken"),
	}
	if maxResults > 0 {
		opts.MaxResults = gmail.MaxResults(maxResults)
	}
	return opts, nil
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	opts, err := searchOptions(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel, err := common.WithTimeout(ctx, args, sc.Config().RequestTimeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer cancel()

	c, errResult := client(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	result, err := c.Search(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search emails: %v", err)), nil
	}
	return jsonResult(result)
}

func handleDeleteMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	ids, err := batch.ParseStringOrArray(args["messageId"], "messageId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel, err := common.WithTimeout(ctx, args, sc.Config().RequestTimeout)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer cancel()

	c, errResult := client(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(ctx, ids, func(ctx context.Context, id string) (string, error) {
		if err := c.DeleteMessage(ctx, id); err != nil {
			return "", fmt.Errorf("Error deleting email with ID '%s': %w", id, err)
		}
		return fmt.Sprintf("Email with ID '%s' successfully deleted.", id), nil
	})

	if len(results) == 1 {
		r := results[0]
		if r.Status != batch.StatusSuccess {
			return mcp.NewToolResultError(r.Error), nil
		}
		return mcp.NewToolResultText(r.Result), nil
	}

	summary := batch.Summarize(results)
	text := batch.FormatResults(results)
	if summary.Successful == 0 {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// splitEmailAddresses splits a comma-separated string of email addresses
func splitEmailAddresses(addresses string) []string {
	if addresses == "" {
		return nil
	}

	parts := strings.Split(addresses, ",")
	result := make([]string, 0, len(parts))
	for _, addr := range parts {
		trimmed := strings.TrimSpace(addr)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
