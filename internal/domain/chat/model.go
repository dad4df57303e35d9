package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeText  = "text"
	TypeImage = "image"
	TypeFile  = "file"
)

// Message is one chat message between two users. Messages are stored and
// polled; there is no push channel.
type Message struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	SenderID      uuid.UUID  `db:"sender_id" json:"sender_id"`
	ReceiverID    uuid.UUID  `db:"receiver_id" json:"receiver_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Message       string     `db:"message" json:"message"`
	MessageType   string     `db:"message_type" json:"message_type"`
	FileURL       *string    `db:"file_url" json:"file_url,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// SendInput is the request body for sending a message. The sender is always
// the authenticated principal.
type SendInput struct {
	ReceiverID    uuid.UUID  `json:"receiver_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Message       string     `json:"message"`
	MessageType   string     `json:"message_type"`
	FileURL       *string    `json:"file_url"`
}

func validType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeFile:
		return true
	}
	return false
}
