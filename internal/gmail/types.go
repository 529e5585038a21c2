package gmail

import (
	"errors"
	"fmt"
	"strings"
)

// Label restricts a search to one mailbox view.
type Label string

// Search labels. LabelAll disables label filtering.
const (
	LabelAll   Label = "ALL"
	LabelInbox Label = "INBOX"
	LabelSent  Label = "SENT"
	LabelDraft Label = "DRAFT"
	LabelSpam  Label = "SPAM"
	LabelTrash Label = "TRASH"
)

// Labels lists the accepted search labels in display order.
var Labels = []Label{LabelAll, LabelInbox, LabelSent, LabelDraft, LabelSpam, LabelTrash}

// ParseLabel validates a label argument. Empty means LabelInbox; matching is
// case-insensitive.
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LabelInbox, nil
	}
	l := Label(strings.ToUpper(s))
	for _, known := range Labels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q (use one of %s)", ErrInvalidLabel, s, joinLabels())
}

// Filter returns the label ids sent to the provider for this label.
func (l Label) Filter() []string {
	if l == LabelAll || l == "" {
		return nil
	}
	return []string{string(l)}
}

func joinLabels() string {
	parts := make([]string, len(Labels))
	for i, l := range Labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

// Placeholder values used when a message lacks a field.
const (
	NoSubject         = "No subject"
	NoSender          = "No sender"
	NoRecipients      = "No recipients"
	NoSnippet         = "No snippet"
	NoDate            = "No date"
	BodyNotIncluded   = "<not included>"
	BodyNotAvailable  = "<Text body not available>"
	starredLabelID    = "STARRED"
	labelSeparator    = ", "
	maxProviderPage   = 500
	messageFormatFull = "full"
)

// EmailRecord is the flattened view of one message returned by search and
// details. Records are snapshots; nothing is cached between calls.
type EmailRecord struct {
	ID             string `json:"id"`
	Subject        string `json:"subject"`
	Sender         string `json:"sender"`
	Recipients     string `json:"recipients"`
	Snippet        string `json:"snippet"`
	HasAttachments bool   `json:"has_attachments"`
	Date           string `json:"date"`
	Starred        bool   `json:"starred"`
	Labels         string `json:"labels"`
	Body           string `json:"body"`
}

// SearchOptions configures one Search call.
type SearchOptions struct {
	// Query uses Gmail search syntax. Empty matches everything.
	Query string
	// Label defaults to LabelInbox.
	Label Label
	// MaxResults caps the result. Nil means unbounded.
	MaxResults *int
	// PageToken resumes a previous search.
	PageToken string
}

// SearchResult is the outcome of a Search call.
type SearchResult struct {
	Count    int           `json:"count"`
	Messages []EmailRecord `json:"messages"`
	// NextPageToken is the provider's continuation token, nil when the
	// provider reported no further page.
	NextPageToken *string `json:"next_page_token"`
	// Truncated is set when MaxResults stopped the search while the provider
	// still had more results.
	Truncated bool `json:"truncated"`
}

// Sentinel errors returned by this package.
var (
	ErrInvalidLabel       = errors.New("invalid label")
	ErrInvalidBodyType    = errors.New(`Invalid body type. Use "plain" or "html".`)
	ErrAttachmentNotFound = errors.New("File not found")
	ErrNoRecipients       = errors.New("at least one recipient is required")
	ErrMissingMessageID   = errors.New("message id is required")
)

// MaxResults is a helper for building SearchOptions.
func MaxResults(n int) *int {
	return &n
}
