package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

var (
	ErrNoMedications = errors.New("a prescription needs at least one medication")
	ErrNoValidFields = errors.New("no valid fields to update")
)

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

// Create writes a prescription issued by the requesting doctor. Instructions
// are encrypted before storage.
func (s *Service) Create(ctx context.Context, requester *auth.Principal, in CreateInput) (*Prescription, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourcePrescriptions, phi.ActionWrite) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionWrite, phi.ResourcePrescriptions, "")
		return nil, phi.ErrAuthorizationDenied
	}
	if len(in.Medications) == 0 {
		return nil, ErrNoMedications
	}

	doctorID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}

	p := &Prescription{
		PatientID:     in.PatientID,
		DoctorID:      doctorID,
		AppointmentID: in.AppointmentID,
		Medications:   in.Medications,
	}
	if in.Instructions != nil && *in.Instructions != "" {
		ct, err := s.enc.Encrypt(*in.Instructions)
		if err != nil {
			return nil, err
		}
		p.Instructions = &ct
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionWrite, phi.ResourcePrescriptions,
		p.ID.String(), "", map[string]any{"patient_id": in.PatientID.String()})

	p.Instructions = in.Instructions
	return p, nil
}

// List returns prescriptions scoped to the requester's role, decrypted, with
// joined doctor and patient names. Undecryptable rows are logged and skipped.
// Identifying fields are masked when the requester is not a doctor.
func (s *Service) List(ctx context.Context, requester *auth.Principal, patientID *uuid.UUID, dateFrom, dateTo *time.Time) ([]map[string]any, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourcePrescriptions, phi.ActionRead) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionRead, phi.ResourcePrescriptions, phi.BulkResourceID)
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
		f.PatientID = patientID
	}

	prescriptions, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionRead, phi.ResourcePrescriptions,
		phi.BulkResourceID, "", map[string]any{"count": len(prescriptions)})

	out := make([]map[string]any, 0, len(prescriptions))
	for _, p := range prescriptions {
		if p.Instructions != nil && *p.Instructions != "" {
			pt, err := s.enc.Decrypt(*p.Instructions)
			if err != nil {
				s.log.Error().Err(err).Str("prescription_id", p.ID.String()).
					Msg("skipping undecryptable prescription")
				continue
			}
			p.Instructions = &pt
		}
		m := p.asMap()
		if requester.Role != phi.RoleDoctor {
			m = phi.Mask(m)
		}
		out = append(out, m)
	}
	return out, nil
}

// Update applies field changes to a prescription issued by the requesting
// doctor. Protected fields are stripped and instructions are re-encrypted.
func (s *Service) Update(ctx context.Context, requester *auth.Principal, id uuid.UUID, updates map[string]any) (*Prescription, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourcePrescriptions, phi.ActionUpdate) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionUpdate, phi.ResourcePrescriptions, id.String())
		return nil, phi.ErrAuthorizationDenied
	}

	doctorID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DoctorID != doctorID {
		return nil, ErrNotFound
	}

	applied := 0
	for field, value := range updates {
		if protectedFields[field] {
			continue
		}
		switch field {
		case "instructions":
			if value == nil {
				p.Instructions = nil
			} else {
				str, ok := value.(string)
				if !ok {
					continue
				}
				ct, err := s.enc.Encrypt(str)
				if err != nil {
					return nil, err
				}
				p.Instructions = &ct
			}
		case "medications":
			meds, err := toMedications(value)
			if err != nil {
				continue
			}
			if len(meds) == 0 {
				return nil, ErrNoMedications
			}
			p.Medications = meds
		default:
			continue
		}
		applied++
	}
	if applied == 0 {
		return nil, ErrNoValidFields
	}

	now := time.Now().UTC()
	p.UpdatedAt = &now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update prescription: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionUpdate, phi.ResourcePrescriptions,
		p.ID.String(), "", map[string]any{"fields": applied})

	if p.Instructions != nil && *p.Instructions != "" {
		pt, err := s.enc.Decrypt(*p.Instructions)
		if err != nil {
			return nil, err
		}
		p.Instructions = &pt
	}
	return p, nil
}

// toMedications converts a raw JSON update value into medications. The body
// arrives as []any of maps; a round-trip through json keeps one parser.
func toMedications(v any) ([]Medication, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var meds []Medication
	if err := json.Unmarshal(raw, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}
