package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("prescription not found")

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	List(ctx context.Context, f ListFilter) ([]*Prescription, error)
}
