package google

import gmail "google.golang.org/api/gmail/v1"

// GmailScopes grants full mailbox access. Permanent deletion is not covered
// by the narrower gmail.modify scope.
var GmailScopes = []string{
	gmail.MailGoogleComScope,
}

// Gmail API identifiers used for the token file name.
const (
	GmailAPIName    = "gmail"
	GmailAPIVersion = "v1"
)
