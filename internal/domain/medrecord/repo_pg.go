package medrecord

import (
	"context"
	"errors"
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

const recordCols = `id, patient_id, doctor_id, appointment_id, diagnosis,
	treatment, notes, file_urls, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (
			id, patient_id, doctor_id, appointment_id, diagnosis,
			treatment, notes, file_urls
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.AppointmentID,
		rec.Diagnosis, rec.Treatment, rec.Notes, rec.FileURLs,
	).Scan(&rec.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_records SET
			diagnosis=$2, treatment=$3, notes=$4, file_urls=$5, updated_at=$6
		WHERE id = $1`,
		rec.ID, rec.Diagnosis, rec.Treatment, rec.Notes, rec.FileURLs, rec.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Record, error) {
	query := `
		SELECT m.id, m.patient_id, m.doctor_id, m.appointment_id, m.diagnosis,
			m.treatment, m.notes, m.file_urls, m.created_at, m.updated_at,
			u.full_name AS doctor_name, u.specialization AS doctor_specialization
		FROM medical_records m
		JOIN users u ON u.id = m.doctor_id
		WHERE 1=1`
	args := []interface{}{}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND m.patient_id = $%d", len(args))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		query += fmt.Sprintf(" AND m.doctor_id = $%d", len(args))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += fmt.Sprintf(" AND m.created_at >= $%d", len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += fmt.Sprintf(" AND m.created_at <= $%d", len(args))
	}
	query += ` ORDER BY m.created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.AppointmentID, &rec.Diagnosis,
			&rec.Treatment, &rec.Notes, &rec.FileURLs, &rec.CreatedAt, &rec.UpdatedAt,
			&rec.DoctorName, &rec.DoctorSpecialization,
		); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.AppointmentID, &rec.Diagnosis,
		&rec.Treatment, &rec.Notes, &rec.FileURLs, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
