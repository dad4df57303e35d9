package admin

import (
	"time"

	"github.com/google/uuid"
)

// Payment is one payment transaction tied to a user and, usually, an
// appointment.
type Payment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Amount        float64    `db:"amount" json:"amount"`
	Currency      string     `db:"currency" json:"currency"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// AppointmentSummary is an appointment enriched with the names an admin
// overview needs.
type AppointmentSummary struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	Status          string    `db:"status" json:"status"`
	PaymentStatus   string    `db:"payment_status" json:"payment_status"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	PatientName     string    `db:"patient_name" json:"patient_name"`
	DoctorName      string    `db:"doctor_name" json:"doctor_name"`
}

// PlatformStats is the admin dashboard overview.
type PlatformStats struct {
	TotalUsers        int     `json:"total_users"`
	TotalPatients     int     `json:"total_patients"`
	TotalDoctors      int     `json:"total_doctors"`
	TotalAppointments int     `json:"total_appointments"`
	TotalRevenue      float64 `json:"total_revenue"`
}
