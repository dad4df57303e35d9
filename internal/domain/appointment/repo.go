package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested appointment does not exist.
var ErrNotFound = errors.New("appointment not found")

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, f ListFilter) ([]*Appointment, error)

	// CountUnpaid counts a patient's appointments with pending or overdue payment.
	CountUnpaid(ctx context.Context, patientID uuid.UUID) (int, error)
	// SlotTaken reports whether the doctor already has a scheduled appointment
	// at exactly the given time.
	SlotTaken(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
	// HasAppointmentBetween reports whether any appointment links the pair.
	HasAppointmentBetween(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}
