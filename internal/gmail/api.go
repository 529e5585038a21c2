package gmail

import (
	"context"

	gmail "google.golang.org/api/gmail/v1"
)

const userMe = "me"

// ListRequest is one page request against the message list endpoint.
type ListRequest struct {
	Query     string
	LabelIDs  []string
	PageSize  int64
	PageToken string
}

// MessagesAPI is the narrow slice of the Gmail users.messages resource this
// package depends on. Tests substitute a fake.
type MessagesAPI interface {
	List(ctx context.Context, req ListRequest) (*gmail.ListMessagesResponse, error)
	Get(ctx context.Context, id string) (*gmail.Message, error)
	Send(ctx context.Context, raw string) (*gmail.Message, error)
	Delete(ctx context.Context, id string) error
}

// serviceAPI adapts *gmail.Service to MessagesAPI.
type serviceAPI struct {
	msgs *gmail.UsersMessagesService
}

// NewServiceAPI wraps a Gmail service.
func NewServiceAPI(svc *gmail.Service) MessagesAPI {
	return &serviceAPI{msgs: svc.Users.Messages}
}

func (s *serviceAPI) List(ctx context.Context, req ListRequest) (*gmail.ListMessagesResponse, error) {
	call := s.msgs.List(userMe).MaxResults(req.PageSize)
	if req.Query != "" {
		call = call.Q(req.Query)
	}
	if len(req.LabelIDs) > 0 {
		call = call.LabelIds(req.LabelIDs...)
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}
	return call.Context(ctx).Do()
}

func (s *serviceAPI) Get(ctx context.Context, id string) (*gmail.Message, error) {
	return s.msgs.Get(userMe, id).Format(messageFormatFull).Context(ctx).Do()
}

func (s *serviceAPI) Send(ctx context.Context, raw string) (*gmail.Message, error) {
	return s.msgs.Send(userMe, &gmail.Message{Raw: raw}).Context(ctx).Do()
}

func (s *serviceAPI) Delete(ctx context.Context, id string) error {
	return s.msgs.Delete(userMe, id).Context(ctx).Do()
}
