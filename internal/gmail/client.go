package gmail

import (
	"context"
	"fmt"
	"log/slog"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/logging"
)

// Client runs the message operations exposed as tools on top of a MessagesAPI.
type Client struct {
	api     MessagesAPI
	limiter Limiter
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter rate limits every provider call.
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics records backend operation metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client over api.
func NewClient(api MessagesAPI, opts ...Option) *Client {
	c := &Client{api: api, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	c.logger = logging.WithService(c.logger, instrumentation.ServiceGmail)
	return c
}

// NewClientFromService creates a Client backed by a Gmail service.
func NewClientFromService(svc *gmail.Service, opts ...Option) *Client {
	return NewClient(NewServiceAPI(svc), opts...)
}

// Search lists message handles page by page and hydrates each one in order.
//
// Paging stops when the provider reports no next page or MaxResults handles
// have been collected. Hydration is sequential; the first failure aborts
// the call and no partial result is returned.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	label := opts.Label
	if label == "" {
		label = LabelInbox
	}
	if _, err := ParseLabel(string(label)); err != nil {
		return nil, err
	}

	var (
		ids       []string
		pageToken = opts.PageToken
		next      string
		pages     int
	)
	for {
		pageSize := int64(maxProviderPage)
		if opts.MaxResults != nil {
			remaining := *opts.MaxResults - len(ids)
			if remaining <= 0 {
				break
			}
			pageSize = int64(min(maxProviderPage, remaining))
		}

		req := ListRequest{
			Query:     opts.Query,
			LabelIDs:  label.Filter(),
			PageSize:  pageSize,
			PageToken: pageToken,
		}
		var resp *gmail.ListMessagesResponse
		err := c.call(ctx, instrumentation.OperationList, func(ctx context.Context) error {
			var err error
			resp, err = c.api.List(ctx, req)
			if err == nil {
				instrumentation.SetResultCount(ctx, len(resp.Messages))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		pages++

		for _, m := range resp.Messages {
			if m != nil {
				ids = append(ids, m.Id)
			}
		}

		next = resp.NextPageToken
		if next == "" {
			break
		}
		if opts.MaxResults != nil && len(ids) >= *opts.MaxResults {
			break
		}
		pageToken = next
	}

	truncated := false
	if opts.MaxResults != nil {
		limit := max(*opts.MaxResults, 0)
		if len(ids) > limit {
			ids = ids[:limit]
			truncated = true
		} else if len(ids) == limit && next != "" {
			truncated = true
		}
	}

	records := make([]EmailRecord, 0, len(ids))
	for _, id := range ids {
		msg, err := c.getMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, Normalize(msg))
	}

	result := &SearchResult{
		Count:     len(records),
		Messages:  records,
		Truncated: truncated,
	}
	if next != "" {
		result.NextPageToken = &next
	}

	c.logger.DebugContext(ctx, "search finished",
		logging.Operation("gmail.search"),
		slog.String("label", string(label)),
		slog.Int("pages", pages),
		slog.Int("count", result.Count),
		slog.Bool("truncated", truncated))
	return result, nil
}

// GetMessage fetches one message in full format.
func (c *Client) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	if id == "" {
		return nil, ErrMissingMessageID
	}
	return c.getMessage(ctx, id)
}

func (c *Client) getMessage(ctx context.Context, id string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.call(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		msg, err = c.api.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return msg, nil
}

// GetMessageDetails returns the normalized record for one message.
func (c *Client) GetMessageDetails(ctx context.Context, id string) (EmailRecord, error) {
	msg, err := c.GetMessage(ctx, id)
	if err != nil {
		return EmailRecord{}, err
	}
	return Normalize(msg), nil
}

// BodyFormat selects the rendering returned by GetMessageBody.
type BodyFormat string

const (
	FormatText     BodyFormat = "text"
	FormatMarkdown BodyFormat = "markdown"
)

// GetMessageBody returns the message body. FormatText returns the plain-text
// body or BodyNotAvailable. FormatMarkdown converts the HTML body when there
// is one and falls back to the plain text.
func (c *Client) GetMessageBody(ctx context.Context, id string, format BodyFormat) (string, error) {
	msg, err := c.GetMessage(ctx, id)
	if err != nil {
		return "", err
	}

	switch format {
	case "", FormatText:
		return ExtractBody(msg.Payload), nil
	case FormatMarkdown:
		if src, ok := ExtractHTML(msg.Payload); ok {
			return HTMLToMarkdown(src)
		}
		return ExtractBody(msg.Payload), nil
	default:
		return "", fmt.Errorf("invalid format %q, must be 'text' or 'markdown'", format)
	}
}

// SendEmail validates and sends msg, returning the provider message id.
func (c *Client) SendEmail(ctx context.Context, msg *EmailMessage) (string, error) {
	raw, err := msg.BuildRaw()
	if err != nil {
		return "", err
	}

	var sent *gmail.Message
	err = c.call(ctx, instrumentation.OperationSend, func(ctx context.Context) error {
		var err error
		sent, err = c.api.Send(ctx, raw)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.InfoContext(ctx, "email sent",
		logging.MessageID(sent.Id),
		logging.Recipients(msg.To),
		slog.Int("attachments", len(msg.Attachments)))
	return sent.Id, nil
}

// DeleteMessage permanently deletes one message.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingMessageID
	}
	return c.call(ctx, instrumentation.OperationDelete, func(ctx context.Context) error {
		return c.api.Delete(ctx, id)
	})
}

// call waits on the limiter and runs fn as an observed backend call.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return instrumentation.ObserveBackend(ctx, c.metrics, instrumentation.ServiceGmail, op, fn)
}
