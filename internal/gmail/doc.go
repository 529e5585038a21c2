// Package gmail implements the mailbox operations behind the gmail tool
// server: search with hydration, message details and bodies, sending with
// attachments, and deletion.
//
// All provider access goes through the narrow MessagesAPI interface.
// NewServiceAPI adapts a *gmail.Service from google.golang.org/api; tests
// supply a fake.
//
// Search lists handles with page sizes of at most 500, stops at the
// caller's cap or when the provider has no further page, then fetches every
// handle in order and flattens it with Normalize:
//
//	client := gmail.NewClientFromService(svc)
//	res, err := client.Search(ctx, gmail.SearchOptions{
//	    Query:      "from:alice is:unread",
//	    Label:      gmail.LabelInbox,
//	    MaxResults: gmail.MaxResults(20),
//	})
//
// Outgoing mail is composed with go-message. HTML bodies carry a generated
// plain-text alternative.
package gmail
