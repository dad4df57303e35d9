package admin

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository covers the cross-table queries the admin surface and the
// dashboards need. It deliberately reads other domains' tables: the admin
// views are reporting queries, not domain operations.
type Repository interface {
	// Platform-wide counters.
	CountUsersByRole(ctx context.Context, role string) (int, error)
	CountAppointments(ctx context.Context) (int, error)
	SumPayments(ctx context.Context) (float64, error)

	// Per-principal dashboard counters.
	CountAppointmentsForPatient(ctx context.Context, patientID uuid.UUID, status string) (int, error)
	CountAppointmentsForDoctor(ctx context.Context, doctorID uuid.UUID, status string) (int, error)
	CountDistinctPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
	CountPrescriptionsForPatient(ctx context.Context, patientID uuid.UUID) (int, error)
	CountRecordsForPatient(ctx context.Context, patientID uuid.UUID) (int, error)

	// Admin views over other domains.
	ListAppointments(ctx context.Context, status string, limit, offset int) ([]*AppointmentSummary, error)
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, status string) error
	ListPayments(ctx context.Context, status string, limit, offset int) ([]*Payment, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error
}
