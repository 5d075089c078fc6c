package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/iliyamo/storefront-live/internal/api"
	"github.com/iliyamo/storefront-live/internal/live"
	"github.com/iliyamo/storefront-live/internal/model"
)

type MessageAPI interface {
	SendMessage(ctx context.Context, m api.NewMessage) (model.Message, error)
}

// MessageService posts messages. The server assigns ids, so there is no
// optimistic entry; the stored copy is added to the inbox on success and the
// push echo is deduped by id.
type MessageService struct {
	api   MessageAPI
	inbox *live.Inbox
	guard inflight
}

func NewMessageService(a MessageAPI, inbox *live.Inbox) *MessageService {
	return &MessageService{api: a, inbox: inbox}
}

func (s *MessageService) Send(ctx context.Context, m api.NewMessage) (model.Message, error) {
	m.Body = strings.TrimSpace(m.Body)
	if m.Body == "" {
		return model.Message{}, ErrEmptyMessage
	}
	key := m.To + "\x00" + m.Body
	if !s.guard.acquire(key) {
		return model.Message{}, ErrInFlight
	}
	defer s.guard.release(key)

	out, err := s.api.SendMessage(ctx, m)
	if err != nil {
		return model.Message{}, errors.Wrap(err, "send message")
	}
	if s.inbox != nil {
		s.inbox.Add(out)
	}
	return out, nil
}
