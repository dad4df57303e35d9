package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medconnect/medconnect/internal/platform/db"
	"github.com/medconnect/medconnect/internal/platform/phi"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const userCols = `id, email, password_hash, role, full_name, phone, specialization,
	date_of_birth, is_active, email_verified, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, role, full_name, phone, specialization,
			date_of_birth, is_active, email_verified
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.FullName, u.Phone, u.Specialization,
		u.DateOfBirth, u.IsActive, u.EmailVerified,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET
			full_name=$2, phone=$3, specialization=$4, date_of_birth=$5,
			is_active=$6, role=$7, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.FullName, u.Phone, u.Specialization, u.DateOfBirth,
		u.IsActive, u.Role,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) SetEmailVerified(ctx context.Context, email string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE email = $1`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, role phi.Role, limit, offset int) ([]*User, int, error) {
	where := ""
	args := []interface{}{}
	if role != "" {
		where = ` WHERE role = $1`
		args = append(args, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *repoPG) ListDoctors(ctx context.Context, specialization, search string) ([]*DoctorProfile, error) {
	query := `
		SELECT ` + prefixCols("u", userCols) + `, COUNT(a.id) AS total_appointments
		FROM users u
		LEFT JOIN appointments a ON a.doctor_id = u.id
		WHERE u.role = 'doctor' AND u.is_active`
	args := []interface{}{}

	if specialization != "" {
		args = append(args, specialization)
		query += fmt.Sprintf(" AND u.specialization = $%d", len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (u.full_name ILIKE $%d OR u.specialization ILIKE $%d)", len(args), len(args))
	}
	query += ` GROUP BY u.id ORDER BY u.full_name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []*DoctorProfile
	for rows.Next() {
		var d DoctorProfile
		if err := rows.Scan(
			&d.ID, &d.Email, &d.PasswordHash, &d.Role, &d.FullName, &d.Phone, &d.Specialization,
			&d.DateOfBirth, &d.IsActive, &d.EmailVerified, &d.CreatedAt, &d.UpdatedAt,
			&d.TotalAppointments,
		); err != nil {
			return nil, err
		}
		doctors = append(doctors, &d)
	}
	return doctors, rows.Err()
}

func (r *repoPG) ListPatients(ctx context.Context, doctorID *uuid.UUID, search string) ([]*PatientProfile, error) {
	query := `
		SELECT ` + prefixCols("u", userCols) + `,
			COUNT(a.id) AS total_appointments,
			MAX(a.appointment_date) AS last_visit
		FROM users u
		LEFT JOIN appointments a ON a.patient_id = u.id
		WHERE u.role = 'patient'`
	args := []interface{}{}

	if doctorID != nil {
		args = append(args, *doctorID)
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM appointments da WHERE da.patient_id = u.id AND da.doctor_id = $%d)`, len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (u.full_name ILIKE $%d OR u.email ILIKE $%d)", len(args), len(args))
	}
	query += ` GROUP BY u.id ORDER BY u.full_name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*PatientProfile
	for rows.Next() {
		var p PatientProfile
		if err := rows.Scan(
			&p.ID, &p.Email, &p.PasswordHash, &p.Role, &p.FullName, &p.Phone, &p.Specialization,
			&p.DateOfBirth, &p.IsActive, &p.EmailVerified, &p.CreatedAt, &p.UpdatedAt,
			&p.TotalAppointments, &p.LastVisit,
		); err != nil {
			return nil, err
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}

func prefixCols(prefix, cols string) string {
	out := ""
	for i, c := range splitCols(cols) {
		if i > 0 {
			out += ", "
		}
		out += prefix + "." + c
	}
	return out
}

func splitCols(cols string) []string {
	var out []string
	field := ""
	for _, r := range cols {
		switch r {
		case ',':
			out = append(out, field)
			field = ""
		case ' ', '\n', '\t':
		default:
			field += string(r)
		}
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FullName, &u.Phone, &u.Specialization,
		&u.DateOfBirth, &u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanUserRow(rows pgx.Rows) (*User, error) {
	var u User
	err := rows.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FullName, &u.Phone, &u.Specialization,
		&u.DateOfBirth, &u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
