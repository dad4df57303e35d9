package medrecord

import (
	"time"

	"github.com/google/uuid"
)

// Record is a medical record. Diagnosis, treatment and notes are sensitive
// fields: they are stored encrypted and only ever leave the service layer as
// plaintext.
type Record struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Diagnosis     *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment     *string    `db:"treatment" json:"treatment,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	FileURLs      []string   `db:"file_urls" json:"file_urls"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	// Joined from users on list queries.
	DoctorName           string  `db:"doctor_name" json:"doctor_name,omitempty"`
	DoctorSpecialization *string `db:"doctor_specialization" json:"doctor_specialization,omitempty"`
}

// asMap renders the record in the wire shape the list endpoint returns. The
// map form is what the masking rules operate on.
func (r *Record) asMap() map[string]any {
	urls := r.FileURLs
	if urls == nil {
		urls = []string{}
	}
	m := map[string]any{
		"id":         r.ID.String(),
		"patient_id": r.PatientID.String(),
		"doctor_id":  r.DoctorID.String(),
		"file_urls":  urls,
		"created_at": r.CreatedAt,
	}
	if r.AppointmentID != nil {
		m["appointment_id"] = r.AppointmentID.String()
	}
	if r.Diagnosis != nil {
		m["diagnosis"] = *r.Diagnosis
	}
	if r.Treatment != nil {
		m["treatment"] = *r.Treatment
	}
	if r.Notes != nil {
		m["notes"] = *r.Notes
	}
	if r.UpdatedAt != nil {
		m["updated_at"] = *r.UpdatedAt
	}
	if r.DoctorName != "" {
		m["doctor_name"] = r.DoctorName
	}
	if r.DoctorSpecialization != nil {
		m["doctor_specialization"] = *r.DoctorSpecialization
	}
	return m
}

// CreateInput is the request body for creating a record. The doctor is taken
// from the authenticated principal, never from the body.
type CreateInput struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	Diagnosis     *string    `json:"diagnosis"`
	Treatment     *string    `json:"treatment"`
	Notes         *string    `json:"notes"`
	FileURLs      []string   `json:"file_urls"`
}

// ListFilter narrows a record listing. All fields are optional.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
}
