package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medconnect/medconnect/internal/platform/phi"
)

// User maps to the users table. PasswordHash never serializes.
type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	Role           phi.Role  `db:"role" json:"role"`
	FullName       string    `db:"full_name" json:"full_name"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	DateOfBirth    *string   `db:"date_of_birth" json:"date_of_birth,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	EmailVerified  bool      `db:"email_verified" json:"email_verified"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DoctorProfile is a doctor listing entry with their appointment volume.
type DoctorProfile struct {
	User
	TotalAppointments int `json:"total_appointments"`
}

// PatientProfile is a patient listing entry as seen by doctors and admins.
type PatientProfile struct {
	User
	TotalAppointments int        `json:"total_appointments"`
	LastVisit         *time.Time `json:"last_visit,omitempty"`
}

// RegisterInput is the payload for POST /api/auth/register.
type RegisterInput struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Role           phi.Role `json:"role"`
	FullName       string   `json:"full_name"`
	Phone          *string  `json:"phone,omitempty"`
	Specialization *string  `json:"specialization,omitempty"`
}

// Token is the authentication response body.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}
