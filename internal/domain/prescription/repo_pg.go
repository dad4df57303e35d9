package prescription

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

const rxCols = `id, patient_id, doctor_id, appointment_id, medications,
	instructions, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (
			id, patient_id, doctor_id, appointment_id, medications, instructions
		) VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.Medications, p.Instructions,
	).Scan(&p.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id).Scan(
		&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.Medications,
		&p.Instructions, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET
			medications=$2, instructions=$3, updated_at=$4
		WHERE id = $1`,
		p.ID, p.Medications, p.Instructions, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Prescription, error) {
	query := `
		SELECT p.id, p.patient_id, p.doctor_id, p.appointment_id, p.medications,
			p.instructions, p.created_at, p.updated_at,
			d.full_name AS doctor_name, d.specialization AS doctor_specialization,
			pa.full_name AS patient_name
		FROM prescriptions p
		JOIN users d ON d.id = p.doctor_id
		JOIN users pa ON pa.id = p.patient_id
		WHERE 1=1`
	args := []interface{}{}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND p.patient_id = $%d", len(args))
	}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		query += fmt.Sprintf(" AND p.doctor_id = $%d", len(args))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += fmt.Sprintf(" AND p.created_at >= $%d", len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += fmt.Sprintf(" AND p.created_at <= $%d", len(args))
	}
	query += ` ORDER BY p.created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prescriptions []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(
			&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.Medications,
			&p.Instructions, &p.CreatedAt, &p.UpdatedAt,
			&p.DoctorName, &p.DoctorSpecialization, &p.PatientName,
		); err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, &p)
	}
	return prescriptions, rows.Err()
}
