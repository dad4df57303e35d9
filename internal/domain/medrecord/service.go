package medrecord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

var ErrNoValidFields = errors.New("no valid fields to update")

// protectedFields can never be changed through an update, whatever the body
// claims.
var protectedFields = map[string]bool{
	"id":         true,
	"patient_id": true,
	"doctor_id":  true,
	"created_at": true,
}

type Service struct {
	repo  Repository
	enc   *phi.Encryptor
	audit *phi.AuditLogger
	log   zerolog.Logger
}

func NewService(repo Repository, enc *phi.Encryptor, audit *phi.AuditLogger, log zerolog.Logger) *Service {
	return &Service{repo: repo, enc: enc, audit: audit, log: log}
}

// Create stores a new medical record authored by the requesting doctor.
// Diagnosis, treatment and notes are encrypted before they reach the
// repository.
func (s *Service) Create(ctx context.Context, requester *auth.Principal, in CreateInput) (*Record, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourceMedicalRecords, phi.ActionWrite) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionWrite, phi.ResourceMedicalRecords, "")
		return nil, phi.ErrAuthorizationDenied
	}

	doctorID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}

	r := &Record{
		PatientID:     in.PatientID,
		DoctorID:      doctorID,
		AppointmentID: in.AppointmentID,
		FileURLs:      in.FileURLs,
	}
	if r.Diagnosis, err = s.encryptField(in.Diagnosis); err != nil {
		return nil, err
	}
	if r.Treatment, err = s.encryptField(in.Treatment); err != nil {
		return nil, err
	}
	if r.Notes, err = s.encryptField(in.Notes); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create medical record: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionWrite, phi.ResourceMedicalRecords,
		r.ID.String(), "", map[string]any{"patient_id": in.PatientID.String()})

	// The caller gets the plaintext back.
	r.Diagnosis = in.Diagnosis
	r.Treatment = in.Treatment
	r.Notes = in.Notes
	return r, nil
}

// List returns records scoped to the requester's role, decrypted. Records
// whose ciphertext cannot be decrypted are logged and skipped rather than
// failing the whole listing. When the requester is not a doctor, identifying
// fields are masked in the response.
func (s *Service) List(ctx context.Context, requester *auth.Principal, patientID *uuid.UUID, dateFrom, dateTo *time.Time) ([]map[string]any, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourceMedicalRecords, phi.ActionRead) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionRead, phi.ResourceMedicalRecords, phi.BulkResourceID)
		return nil, phi.ErrAuthorizationDenied
	}

	selfID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}

	f := ListFilter{DateFrom: dateFrom, DateTo: dateTo}
	switch requester.Role {
	case phi.RolePatient:
		f.PatientID = &selfID
	case phi.RoleDoctor:
		if patientID != nil {
			f.PatientID = patientID
		} else {
			f.DoctorID = &selfID
		}
	case phi.RoleAdmin:
		if patientID == nil {
			s.audit.LogDenied(ctx, requester.ID, phi.ActionRead, phi.ResourceMedicalRecords, phi.BulkResourceID)
			return nil, phi.ErrAuthorizationDenied
		}
		f.PatientID = patientID
	}

	records, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionRead, phi.ResourceMedicalRecords,
		phi.BulkResourceID, "", map[string]any{"count": len(records)})

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if err := s.decryptRecord(r); err != nil {
			s.log.Error().Err(err).Str("record_id", r.ID.String()).
				Msg("skipping undecryptable medical record")
			continue
		}
		m := r.asMap()
		if requester.Role != phi.RoleDoctor {
			m = phi.Mask(m)
		}
		out = append(out, m)
	}
	return out, nil
}

// Update applies field changes to a record owned by the requesting doctor.
// Protected fields are stripped; sensitive fields are re-encrypted before
// persisting so that stored values are never plaintext.
func (s *Service) Update(ctx context.Context, requester *auth.Principal, id uuid.UUID, updates map[string]any) (*Record, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourceMedicalRecords, phi.ActionUpdate) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionUpdate, phi.ResourceMedicalRecords, id.String())
		return nil, phi.ErrAuthorizationDenied
	}

	doctorID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.DoctorID != doctorID {
		// Ownership failures look identical to missing records.
		return nil, ErrNotFound
	}

	applied := 0
	for field, value := range updates {
		if protectedFields[field] {
			continue
		}
		switch field {
		case "diagnosis":
			if r.Diagnosis, err = s.encryptValue(value); err != nil {
				return nil, err
			}
		case "treatment":
			if r.Treatment, err = s.encryptValue(value); err != nil {
				return nil, err
			}
		case "notes":
			if r.Notes, err = s.encryptValue(value); err != nil {
				return nil, err
			}
		case "file_urls":
			urls, ok := toStringSlice(value)
			if !ok {
				continue
			}
			r.FileURLs = urls
		default:
			continue
		}
		applied++
	}
	if applied == 0 {
		return nil, ErrNoValidFields
	}

	now := time.Now().UTC()
	r.UpdatedAt = &now
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update medical record: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionUpdate, phi.ResourceMedicalRecords,
		r.ID.String(), "", map[string]any{"fields": applied})

	if err := s.decryptRecord(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) encryptField(v *string) (*string, error) {
	if v == nil || *v == "" {
		return v, nil
	}
	ct, err := s.enc.Encrypt(*v)
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

// encryptValue handles a raw JSON update value: strings are encrypted, null
// clears the field.
func (s *Service) encryptValue(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	str, ok := v.(string)
	if !ok {
		return nil, ErrNoValidFields
	}
	return s.encryptField(&str)
}

func (s *Service) decryptRecord(r *Record) error {
	var err error
	if r.Diagnosis, err = s.decryptField(r.Diagnosis); err != nil {
		return err
	}
	if r.Treatment, err = s.decryptField(r.Treatment); err != nil {
		return err
	}
	if r.Notes, err = s.decryptField(r.Notes); err != nil {
		return err
	}
	return nil
}

func (s *Service) decryptField(v *string) (*string, error) {
	if v == nil || *v == "" {
		return v, nil
	}
	pt, err := s.enc.Decrypt(*v)
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

func toStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
