package medrecord

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("medical record not found")

// Repository persists medical records. Sensitive fields are stored as the
// ciphertext the service hands over; the repository never sees plaintext.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	List(ctx context.Context, f ListFilter) ([]*Record, error)
}
