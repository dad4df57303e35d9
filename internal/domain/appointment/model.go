package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentOverdue = "overdue"
)

// Defaults applied when a booking omits them.
const (
	DefaultDurationMinutes = 30
	DefaultConsultationFee = 50.00
)

// Appointment maps to the appointments table.
type Appointment struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentDate  time.Time  `db:"appointment_date" json:"appointment_date"`
	DurationMinutes  int        `db:"duration_minutes" json:"duration_minutes"`
	Status           string     `db:"status" json:"status"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	ConsultationFee  float64    `db:"consultation_fee" json:"consultation_fee"`
	PaymentStatus    string     `db:"payment_status" json:"payment_status"`
	PaymentUpdatedAt *time.Time `db:"payment_updated_at" json:"payment_updated_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// CreateInput is the booking payload.
type CreateInput struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           *string   `json:"notes,omitempty"`
}

// ListFilter narrows appointment listings.
type ListFilter struct {
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
	// Exactly one of PatientID/DoctorID set for role scoping; both nil for admin.
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
}

func validStatus(s string) bool {
	return s == StatusScheduled || s == StatusCompleted || s == StatusCancelled
}

func validPaymentStatus(s string) bool {
	return s == PaymentPending || s == PaymentPaid || s == PaymentOverdue
}
