package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medconnect/medconnect/internal/domain/identity"
	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/mailer"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

var (
	ErrPatientsOnly         = errors.New("only patients can book appointments")
	ErrUnpaidAppointments   = errors.New("unpaid appointments must be settled before booking")
	ErrSlotTaken            = errors.New("time slot is already booked")
	ErrDoctorUnavailable    = errors.New("doctor not found or is not available")
	ErrForbidden            = errors.New("access denied")
	ErrInvalidStatus        = errors.New("invalid appointment status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)

// UserDirectory looks up users for doctor validation and notification.
// identity.Repository satisfies it.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	repo  Repository
	users UserDirectory
	audit *phi.AuditLogger
	mail  *mailer.Mailer
	log   zerolog.Logger
}

func NewService(repo Repository, users UserDirectory, audit *phi.AuditLogger, mail *mailer.Mailer, log zerolog.Logger) *Service {
	return &Service{repo: repo, users: users, audit: audit, mail: mail, log: log}
}

// Create books an appointment for the requesting patient. Booking is blocked
// while any prior appointment is unpaid, and a doctor's exact slot can only
// be taken once.
func (s *Service) Create(ctx context.Context, requester *auth.Principal, in CreateInput) (*Appointment, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourceAppointments, phi.ActionWrite) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionWrite, phi.ResourceAppointments, "")
		return nil, phi.ErrAuthorizationDenied
	}
	if requester.Role != phi.RolePatient {
		return nil, ErrPatientsOnly
	}

	patientID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}

	unpaid, err := s.repo.CountUnpaid(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("count unpaid: %w", err)
	}
	if unpaid > 0 {
		return nil, ErrUnpaidAppointments
	}

	taken, err := s.repo.SlotTaken(ctx, in.DoctorID, in.AppointmentDate)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	doctor, err := s.users.GetByID(ctx, in.DoctorID)
	if err != nil || doctor.Role != phi.RoleDoctor || !doctor.IsActive {
		return nil, ErrDoctorUnavailable
	}

	a := &Appointment{
		PatientID:       patientID,
		DoctorID:        in.DoctorID,
		AppointmentDate: in.AppointmentDate,
		DurationMinutes: in.DurationMinutes,
		Notes:           in.Notes,
		Status:          StatusScheduled,
		PaymentStatus:   PaymentPending,
		ConsultationFee: DefaultConsultationFee,
	}
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionWrite, phi.ResourceAppointments,
		a.ID.String(), "", map[string]any{"doctor_id": in.DoctorID.String()})

	// Confirmation to the doctor is best-effort.
	if err := s.mail.SendTemplate(ctx, doctor.Email, mailer.TemplateAppointmentBooked, map[string]string{
		"patient_name": requester.Email,
		"doctor_name":  doctor.FullName,
		"date":         a.AppointmentDate.Format("2006-01-02"),
		"time":         a.AppointmentDate.Format("15:04"),
	}); err != nil {
		s.log.Error().Err(err).Str("appointment_id", a.ID.String()).
			Msg("booking confirmation email failed")
	}

	return a, nil
}

// List returns appointments scoped to the requester's role, filtered and
// sorted by date.
func (s *Service) List(ctx context.Context, requester *auth.Principal, status string, dateFrom, dateTo *time.Time) ([]*Appointment, error) {
	if !phi.IsAuthorized(requester.Role, phi.ResourceAppointments, phi.ActionRead) {
		s.audit.LogDenied(ctx, requester.ID, phi.ActionRead, phi.ResourceAppointments, phi.BulkResourceID)
		return nil, phi.ErrAuthorizationDenied
	}
	if status != "" && !validStatus(status) {
		return nil, ErrInvalidStatus
	}

	f := ListFilter{Status: status, DateFrom: dateFrom, DateTo: dateTo}
	id, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}
	switch requester.Role {
	case phi.RolePatient:
		f.PatientID = &id
	case phi.RoleDoctor:
		f.DoctorID = &id
	}

	appts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionRead, phi.ResourceAppointments,
		phi.BulkResourceID, "", map[string]any{"count": len(appts)})
	return appts, nil
}

// UpdateStatus changes an appointment's status. Patients and doctors may only
// touch their own appointments.
func (s *Service) UpdateStatus(ctx context.Context, requester *auth.Principal, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatus(status) {
		return nil, ErrInvalidStatus
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	requesterID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}
	switch requester.Role {
	case phi.RolePatient:
		if a.PatientID != requesterID {
			return nil, ErrForbidden
		}
	case phi.RoleDoctor:
		if a.DoctorID != requesterID {
			return nil, ErrForbidden
		}
	case phi.RoleAdmin:
		// Admin manages appointments through the admin surface as well.
	default:
		return nil, ErrForbidden
	}

	a.Status = status
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionUpdate, phi.ResourceAppointments,
		a.ID.String(), "", map[string]any{"status": status})
	return a, nil
}

// SetPaymentStatus is the admin-only payment state transition.
func (s *Service) SetPaymentStatus(ctx context.Context, requester *auth.Principal, id uuid.UUID, paymentStatus string) error {
	if requester.Role != phi.RoleAdmin {
		return ErrForbidden
	}
	if !validPaymentStatus(paymentStatus) {
		return ErrInvalidPaymentStatus
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	a.PaymentStatus = paymentStatus
	a.PaymentUpdatedAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	s.audit.LogAccess(ctx, requester.ID, phi.ActionUpdate, phi.ResourceAppointments,
		a.ID.String(), "Payment reconciliation", map[string]any{"payment_status": paymentStatus})
	return nil
}
