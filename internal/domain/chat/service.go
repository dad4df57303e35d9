package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medconnect/medconnect/internal/platform/auth"
)

var (
	ErrEmptyMessage  = errors.New("message cannot be empty")
	ErrInvalidType   = errors.New("invalid message type")
	ErrSelfMessaging = errors.New("cannot message yourself")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Send stores a message from the authenticated principal. The sender id from
// the body, if any, is ignored.
func (s *Service) Send(ctx context.Context, requester *auth.Principal, in SendInput) (*Message, error) {
	senderID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}
	if in.Message == "" {
		return nil, ErrEmptyMessage
	}
	if in.ReceiverID == senderID {
		return nil, ErrSelfMessaging
	}
	if in.MessageType == "" {
		in.MessageType = TypeText
	}
	if !validType(in.MessageType) {
		return nil, ErrInvalidType
	}

	m := &Message{
		SenderID:      senderID,
		ReceiverID:    in.ReceiverID,
		AppointmentID: in.AppointmentID,
		Message:       in.Message,
		MessageType:   in.MessageType,
		FileURL:       in.FileURL,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

// Conversation returns the full exchange between the requester and another
// user, oldest first.
func (s *Service) Conversation(ctx context.Context, requester *auth.Principal, otherUserID uuid.UUID) ([]*Message, error) {
	selfID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}
	messages, err := s.repo.Conversation(ctx, selfID, otherUserID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return messages, nil
}
