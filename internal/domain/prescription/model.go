package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Medication is one item on a prescription. The list is stored as JSONB.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// Prescription ties medications to a patient. Instructions are sensitive and
// stored encrypted.
type Prescription struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	PatientID     uuid.UUID    `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID   `db:"appointment_id" json:"appointment_id,omitempty"`
	Medications   []Medication `db:"medications" json:"medications"`
	Instructions  *string      `db:"instructions" json:"instructions,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time   `db:"updated_at" json:"updated_at,omitempty"`

	// Joined from users on list queries.
	DoctorName           string  `db:"doctor_name" json:"doctor_name,omitempty"`
	DoctorSpecialization *string `db:"doctor_specialization" json:"doctor_specialization,omitempty"`
	PatientName          string  `db:"patient_name" json:"patient_name,omitempty"`
}

func (p *Prescription) asMap() map[string]any {
	meds := p.Medications
	if meds == nil {
		meds = []Medication{}
	}
	m := map[string]any{
		"id":          p.ID.String(),
		"patient_id":  p.PatientID.String(),
		"doctor_id":   p.DoctorID.String(),
		"medications": meds,
		"created_at":  p.CreatedAt,
	}
	if p.AppointmentID != nil {
		m["appointment_id"] = p.AppointmentID.String()
	}
	if p.Instructions != nil {
		m["instructions"] = *p.Instructions
	}
	if p.UpdatedAt != nil {
		m["updated_at"] = *p.UpdatedAt
	}
	if p.DoctorName != "" {
		m["doctor_name"] = p.DoctorName
	}
	if p.DoctorSpecialization != nil {
		m["doctor_specialization"] = *p.DoctorSpecialization
	}
	if p.PatientName != "" {
		m["patient_name"] = p.PatientName
	}
	return m
}

// CreateInput is the request body for writing a prescription. The doctor is
// the authenticated principal.
type CreateInput struct {
	PatientID     uuid.UUID    `json:"patient_id"`
	AppointmentID *uuid.UUID   `json:"appointment_id"`
	Medications   []Medication `json:"medications"`
	Instructions  *string      `json:"instructions"`
}

// ListFilter narrows a prescription listing.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
}
