package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medconnect/medconnect/internal/platform/phi"
)

// ErrNotFound is returned when the requested user does not exist.
var ErrNotFound = errors.New("user not found")

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetEmailVerified(ctx context.Context, email string) error

	// List returns users filtered by role ("" for all), paginated.
	List(ctx context.Context, role phi.Role, limit, offset int) ([]*User, int, error)
	ListDoctors(ctx context.Context, specialization, search string) ([]*DoctorProfile, error)
	// ListPatients scopes to patients seen by doctorID when non-nil.
	ListPatients(ctx context.Context, doctorID *uuid.UUID, search string) ([]*PatientProfile, error)
}

// RelationshipChecker reports whether a doctor and a patient share at least
// one appointment. Profile visibility between the two roles hinges on it.
type RelationshipChecker interface {
	HasAppointmentBetween(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}
