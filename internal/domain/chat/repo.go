package chat

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	// Conversation returns every message between the two users, in either
	// direction, ordered by creation time ascending.
	Conversation(ctx context.Context, a, b uuid.UUID) ([]*Message, error)
}
