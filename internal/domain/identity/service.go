package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medconnect/medconnect/internal/platform/auth"
	"github.com/medconnect/medconnect/internal/platform/mailer"
	"github.com/medconnect/medconnect/internal/platform/otp"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidOTP         = errors.New("invalid or expired verification code")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrForbidden          = errors.New("access denied")
	ErrNoValidFields      = errors.New("no valid fields to update")
)

type Service struct {
	repo   Repository
	rel    RelationshipChecker
	otp    *otp.Gate
	mailer *mailer.Mailer
	issuer *auth.Issuer
}

func NewService(repo Repository, rel RelationshipChecker, gate *otp.Gate, m *mailer.Mailer, issuer *auth.Issuer) *Service {
	return &Service{repo: repo, rel: rel, otp: gate, mailer: m, issuer: issuer}
}

// Register stores an unverified user and emails a verification code. The
// admin role is never grantable through self-registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	if in.Role == "" {
		in.Role = phi.RolePatient
	}
	if in.Role != phi.RolePatient && in.Role != phi.RoleDoctor {
		return nil, fmt.Errorf("role must be patient or doctor")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	code, err := s.otp.Generate(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.mailer.SendVerificationCode(ctx, email, in.FullName, code); err != nil {
		return nil, fmt.Errorf("send verification email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:          email,
		PasswordHash:   hash,
		Role:           in.Role,
		FullName:       in.FullName,
		Phone:          in.Phone,
		Specialization: in.Specialization,
		IsActive:       true,
		EmailVerified:  false,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// VerifyEmail consumes the OTP, marks the user verified, and issues a token.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	ok, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		return nil, ErrInvalidOTP
	}

	if err := s.repo.SetEmailVerified(ctx, email); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.issueToken(u)
}

// Login verifies credentials and returns a token. Unverified accounts are
// rejected after the password check so timing does not leak verification
// state for a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return s.issueToken(u)
}

func (s *Service) issueToken(u *User) (*Token, error) {
	tok, err := s.issuer.Issue(u.ID.String(), u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Token{AccessToken: tok, TokenType: "bearer", User: u}, nil
}

// Me returns the user behind the principal.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// updatableFields are the profile fields a user may change about themselves.
// Everything else (id, email, role, password hash, created_at) is immutable
// through this path.
var updatableFields = map[string]bool{
	"full_name":      true,
	"phone":          true,
	"specialization": true,
	"date_of_birth":  true,
}

// UpdateMe applies profile updates to the principal's own user.
func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, updates map[string]any) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	applied := 0
	for k, v := range updates {
		if !updatableFields[k] {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "full_name":
			u.FullName = str
		case "phone":
			u.Phone = &str
		case "specialization":
			u.Specialization = &str
		case "date_of_birth":
			u.DateOfBirth = &str
		}
		applied++
	}
	if applied == 0 {
		return nil, ErrNoValidFields
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Doctors lists active doctors with optional specialization and name search.
func (s *Service) Doctors(ctx context.Context, specialization, search string) ([]*DoctorProfile, error) {
	return s.repo.ListDoctors(ctx, specialization, search)
}

// Patients lists patients: doctors see only patients they have appointments
// with, admins see everyone.
func (s *Service) Patients(ctx context.Context, requester *auth.Principal, search string) ([]*PatientProfile, error) {
	switch requester.Role {
	case phi.RoleAdmin:
		return s.repo.ListPatients(ctx, nil, search)
	case phi.RoleDoctor:
		doctorID, err := uuid.Parse(requester.ID)
		if err != nil {
			return nil, fmt.Errorf("parse principal id: %w", err)
		}
		return s.repo.ListPatients(ctx, &doctorID, search)
	default:
		return nil, ErrForbidden
	}
}

// GetUser returns another user's profile. Doctors and patients may only see
// profiles they share an appointment with; admins see all.
func (s *Service) GetUser(ctx context.Context, requester *auth.Principal, targetID uuid.UUID) (*User, error) {
	if requester.Role != phi.RoleAdmin {
		requesterID, err := uuid.Parse(requester.ID)
		if err != nil {
			return nil, fmt.Errorf("parse principal id: %w", err)
		}

		var doctorID, patientID uuid.UUID
		switch requester.Role {
		case phi.RoleDoctor:
			doctorID, patientID = requesterID, targetID
		case phi.RolePatient:
			doctorID, patientID = targetID, requesterID
		default:
			return nil, ErrForbidden
		}

		related, err := s.rel.HasAppointmentBetween(ctx, doctorID, patientID)
		if err != nil {
			return nil, fmt.Errorf("check relationship: %w", err)
		}
		if !related {
			return nil, ErrForbidden
		}
	}

	return s.repo.GetByID(ctx, targetID)
}
