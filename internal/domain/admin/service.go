package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medconnect/medconnect/internal/domain/appointment"
	"github.com/medconnect/medconnect/internal/domain/identity"
	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

var (
	ErrAdminEscalation      = errors.New("cannot grant the admin role through this endpoint")
	ErrNoValidFields        = errors.New("no valid fields to update")
	ErrInvalidStatus        = errors.New("invalid appointment status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)

// UserStore is the slice of the identity repository the admin surface needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	Update(ctx context.Context, u *identity.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, role phi.Role, limit, offset int) ([]*identity.User, int, error)
}

type Service struct {
	repo  Repository
	users UserStore
	audit *phi.AuditLogger
}

func NewService(repo Repository, users UserStore, audit *phi.AuditLogger) *Service {
	return &Service{repo: repo, users: users, audit: audit}
}

// DashboardStats returns counters scoped to the requester's role. Each role
// sees a different shape; none sees another principal's numbers.
func (s *Service) DashboardStats(ctx context.Context, requester *auth.Principal) (map[string]any, error) {
	selfID, err := uuid.Parse(requester.ID)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}

	switch requester.Role {
	case phi.RolePatient:
		appointments, err := s.repo.CountAppointmentsForPatient(ctx, selfID, "")
		if err != nil {
			return nil, err
		}
		upcoming, err := s.repo.CountAppointmentsForPatient(ctx, selfID, appointment.StatusScheduled)
		if err != nil {
			return nil, err
		}
		prescriptions, err := s.repo.CountPrescriptionsForPatient(ctx, selfID)
		if err != nil {
			return nil, err
		}
		records, err := s.repo.CountRecordsForPatient(ctx, selfID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"total_appointments":    appointments,
			"total_prescriptions":   prescriptions,
			"total_records":         records,
			"upcoming_appointments": upcoming,
		}, nil

	case phi.RoleDoctor:
		appointments, err := s.repo.CountAppointmentsForDoctor(ctx, selfID, "")
		if err != nil {
			return nil, err
		}
		scheduled, err := s.repo.CountAppointmentsForDoctor(ctx, selfID, appointment.StatusScheduled)
		if err != nil {
			return nil, err
		}
		patients, err := s.repo.CountDistinctPatientsForDoctor(ctx, selfID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"total_appointments": appointments,
			"total_patients":     patients,
			"today_appointments": scheduled,
		}, nil

	case phi.RoleAdmin:
		stats, err := s.PlatformStats(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"total_users":        stats.TotalUsers,
			"total_doctors":      stats.TotalDoctors,
			"total_patients":     stats.TotalPatients,
			"total_appointments": stats.TotalAppointments,
		}, nil
	}
	return map[string]any{}, nil
}

// PlatformStats aggregates the platform-wide admin overview, including
// revenue summed over all payments.
func (s *Service) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	patients, err := s.repo.CountUsersByRole(ctx, string(phi.RolePatient))
	if err != nil {
		return nil, err
	}
	doctors, err := s.repo.CountUsersByRole(ctx, string(phi.RoleDoctor))
	if err != nil {
		return nil, err
	}
	all, err := s.repo.CountUsersByRole(ctx, "")
	if err != nil {
		return nil, err
	}
	appointments, err := s.repo.CountAppointments(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.repo.SumPayments(ctx)
	if err != nil {
		return nil, err
	}
	return &PlatformStats{
		TotalUsers:        all,
		TotalPatients:     patients,
		TotalDoctors:      doctors,
		TotalAppointments: appointments,
		TotalRevenue:      revenue,
	}, nil
}

func (s *Service) ListUsers(ctx context.Context, role phi.Role, limit, offset int) ([]*identity.User, int, error) {
	return s.users.List(ctx, role, limit, offset)
}

// userUpdatableFields are the fields an admin may change on a user. Role
// changes are allowed except escalation to admin.
var userUpdatableFields = map[string]func(*identity.User, any) bool{
	"full_name": func(u *identity.User, v any) bool {
		s, ok := v.(string)
		if ok {
			u.FullName = s
		}
		return ok
	},
	"phone": func(u *identity.User, v any) bool {
		return setOptString(&u.Phone, v)
	},
	"specialization": func(u *identity.User, v any) bool {
		return setOptString(&u.Specialization, v)
	},
	"date_of_birth": func(u *identity.User, v any) bool {
		return setOptString(&u.DateOfBirth, v)
	},
	"role": func(u *identity.User, v any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		switch phi.Role(s) {
		case phi.RolePatient, phi.RoleDoctor:
			u.Role = phi.Role(s)
			return true
		}
		return false
	},
	"is_active": func(u *identity.User, v any) bool {
		b, ok := v.(bool)
		if ok {
			u.IsActive = b
		}
		return ok
	},
	"email_verified": func(u *identity.User, v any) bool {
		b, ok := v.(bool)
		if ok {
			u.EmailVerified = b
		}
		return ok
	},
}

func setOptString(dst **string, v any) bool {
	if v == nil {
		*dst = nil
		return true
	}
	s, ok := v.(string)
	if ok {
		*dst = &s
	}
	return ok
}

// UpdateUser applies admin edits to a user. Promoting anyone to admin is
// rejected outright.
func (s *Service) UpdateUser(ctx context.Context, actor *auth.Principal, id uuid.UUID, updates map[string]any) (*identity.User, error) {
	if role, ok := updates["role"].(string); ok && phi.Role(role) == phi.RoleAdmin {
		return nil, ErrAdminEscalation
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applied := 0
	for field, value := range updates {
		set, ok := userUpdatableFields[field]
		if !ok {
			continue
		}
		if set(u, value) {
			applied++
		}
	}
	if applied == 0 {
		return nil, ErrNoValidFields
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	s.audit.LogAccess(ctx, actor.ID, phi.ActionUpdate, phi.ResourcePatientInfo,
		id.String(), "Administrative update", map[string]any{"fields": applied})
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, actor *auth.Principal, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogAccess(ctx, actor.ID, phi.ActionDelete, phi.ResourcePatientInfo,
		id.String(), "Administrative removal", nil)
	return nil
}

func (s *Service) ListAppointments(ctx context.Context, status string, limit, offset int) ([]*AppointmentSummary, error) {
	if status != "" && !validAppointmentStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListAppointments(ctx, status, limit, offset)
}

func (s *Service) SetAppointmentStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validAppointmentStatus(status) {
		return ErrInvalidStatus
	}
	return s.repo.SetAppointmentStatus(ctx, id, status)
}

func (s *Service) ListPayments(ctx context.Context, status string, limit, offset int) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, status, limit, offset)
}

func (s *Service) SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	switch status {
	case appointment.PaymentPending, appointment.PaymentPaid, appointment.PaymentOverdue:
	default:
		return ErrInvalidPaymentStatus
	}
	return s.repo.SetPaymentStatus(ctx, id, status)
}

func validAppointmentStatus(status string) bool {
	switch status {
	case appointment.StatusScheduled, appointment.StatusCompleted, appointment.StatusCancelled:
		return true
	}
	return false
}
