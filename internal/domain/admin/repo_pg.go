package admin

import (
	"context"
	"fmt"

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

func (r *repoPG) CountUsersByRole(ctx context.Context, role string) (int, error) {
	var n int
	var err error
	if role == "" {
		err = r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	} else {
		err = r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n)
	}
	return n, err
}

func (r *repoPG) CountAppointments(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&n)
	return n, err
}

func (r *repoPG) SumPayments(ctx context.Context) (float64, error) {
	var total float64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments`).Scan(&total)
	return total, err
}

func (r *repoPG) CountAppointmentsForPatient(ctx context.Context, patientID uuid.UUID, status string) (int, error) {
	return r.countAppointments(ctx, "patient_id", patientID, status)
}

func (r *repoPG) CountAppointmentsForDoctor(ctx context.Context, doctorID uuid.UUID, status string) (int, error) {
	return r.countAppointments(ctx, "doctor_id", doctorID, status)
}

func (r *repoPG) countAppointments(ctx context.Context, column string, id uuid.UUID, status string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM appointments WHERE %s = $1`, column)
	args := []interface{}{id}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	var n int
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *repoPG) CountDistinctPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(DISTINCT patient_id) FROM appointments WHERE doctor_id = $1`,
		doctorID).Scan(&n)
	return n, err
}

func (r *repoPG) CountPrescriptionsForPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescriptions WHERE patient_id = $1`, patientID).Scan(&n)
	return n, err
}

func (r *repoPG) CountRecordsForPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records WHERE patient_id = $1`, patientID).Scan(&n)
	return n, err
}

func (r *repoPG) ListAppointments(ctx context.Context, status string, limit, offset int) ([]*AppointmentSummary, error) {
	query := `
		SELECT a.id, a.patient_id, a.doctor_id, a.appointment_date, a.status,
			a.payment_status, a.consultation_fee,
			p.full_name AS patient_name, d.full_name AS doctor_name
		FROM appointments a
		JOIN users p ON p.id = a.patient_id
		JOIN users d ON d.id = a.doctor_id`
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		query += ` WHERE a.status = $1`
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY a.appointment_date DESC LIMIT $%d OFFSET $%d`,
		len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AppointmentSummary
	for rows.Next() {
		var a AppointmentSummary
		if err := rows.Scan(
			&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.Status,
			&a.PaymentStatus, &a.ConsultationFee, &a.PatientName, &a.DoctorName,
		); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *repoPG) SetAppointmentStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *repoPG) ListPayments(ctx context.Context, status string, limit, offset int) ([]*Payment, error) {
	query := `
		SELECT id, user_id, appointment_id, amount, currency, status, created_at, updated_at
		FROM payments`
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		query += ` WHERE status = $1`
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.AppointmentID, &p.Amount, &p.Currency,
			&p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *repoPG) SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
