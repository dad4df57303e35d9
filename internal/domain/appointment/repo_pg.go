package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medconnect/medconnect/internal/platform/db"
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

const apptCols = `id, patient_id, doctor_id, appointment_date, duration_minutes,
	status, notes, consultation_fee, payment_status, payment_updated_at, created_at`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_date, duration_minutes,
			status, notes, consultation_fee, payment_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.DurationMinutes,
		a.Status, a.Notes, a.ConsultationFee, a.PaymentStatus,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET
			status=$2, notes=$3, payment_status=$4, payment_updated_at=$5
		WHERE id = $1`,
		a.ID, a.Status, a.Notes, a.PaymentStatus, a.PaymentUpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointments WHERE 1=1`
	args := []interface{}{}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += fmt.Sprintf(" AND appointment_date >= $%d", len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += fmt.Sprintf(" AND appointment_date <= $%d", len(args))
	}
	query += ` ORDER BY appointment_date`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanApptRow(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (r *repoPG) CountUnpaid(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE patient_id = $1 AND payment_status IN ('pending', 'overdue')`,
		patientID).Scan(&n)
	return n, err
}

func (r *repoPG) SlotTaken(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND appointment_date = $2 AND status = 'scheduled'
		)`, doctorID, at).Scan(&exists)
	return exists, err
}

func (r *repoPG) HasAppointmentBetween(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments WHERE doctor_id = $1 AND patient_id = $2
		)`, doctorID, patientID).Scan(&exists)
	return exists, err
}

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.DurationMinutes,
		&a.Status, &a.Notes, &a.ConsultationFee, &a.PaymentStatus, &a.PaymentUpdatedAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanApptRow(rows pgx.Rows) (*Appointment, error) {
	var a Appointment
	err := rows.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.DurationMinutes,
		&a.Status, &a.Notes, &a.ConsultationFee, &a.PaymentStatus, &a.PaymentUpdatedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
