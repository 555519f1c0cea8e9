package db

import (
	"context"
	"errors"
	"fmt"

	"clinicdocs/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by template and document lookups with no row
var ErrNotFound = errors.New("not found")

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// Prefill source queries. A missing row is a nil record, not an error.

func (q *Queries) FetchPatient(ctx context.Context, id string) (*model.PatientRecord, error) {
	var p model.PatientRecord
	err := q.Pool.QueryRow(ctx,
		`SELECT id, name, phone, email,
			COALESCE(to_char(date_of_birth, 'YYYY-MM-DD'), ''),
			gender, blood_group, address
		FROM patients WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.DateOfBirth, &p.Gender, &p.BloodGroup, &p.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &p, nil
}

func (q *Queries) FetchDoctor(ctx context.Context, id string) (*model.DoctorRecord, error) {
	var d model.DoctorRecord
	err := q.Pool.QueryRow(ctx,
		"SELECT id, name, clinic FROM doctors WHERE id = $1",
		id,
	).Scan(&d.ID, &d.Name, &d.Clinic)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &d, nil
}

func (q *Queries) FetchAppointment(ctx context.Context, id string) (*model.AppointmentRecord, error) {
	var a model.AppointmentRecord
	err := q.Pool.QueryRow(ctx,
		`SELECT id, patient_id, doctor_id,
			to_char(scheduled_at, 'YYYY-MM-DD'),
			to_char(scheduled_at, 'HH24:MI')
		FROM appointments WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &a, nil
}
