package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clinicdocs/internal/model"

	"github.com/jackc/pgx/v5"
)

// Documents are written once; no update query exists.

const documentColumns = `id, template_id, COALESCE(patient_id, ''), COALESCE(doctor_id, ''),
	COALESCE(appointment_id, ''), schema_snapshot, form_data, created_at`

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d               model.Document
		schemaRaw, data []byte
	)
	if err := row.Scan(&d.ID, &d.TemplateID, &d.PatientID, &d.DoctorID, &d.AppointmentID, &schemaRaw, &data, &d.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schemaRaw, &d.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &d.Values); err != nil {
		return nil, fmt.Errorf("failed to decode form data: %w", err)
	}
	return &d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (q *Queries) CreateDocument(ctx context.Context, d *model.Document) (*model.Document, error) {
	schemaJSON, err := json.Marshal(d.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema snapshot: %w", err)
	}
	values := d.Values
	if values == nil {
		values = model.FormData{}
	}
	dataJSON, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form data: %w", err)
	}

	row := q.Pool.QueryRow(ctx,
		`INSERT INTO documents (id, template_id, patient_id, doctor_id, appointment_id, schema_snapshot, form_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+documentColumns,
		d.ID, d.TemplateID, nullable(d.PatientID), nullable(d.DoctorID), nullable(d.AppointmentID), schemaJSON, dataJSON,
	)
	created, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return created, nil
}

func (q *Queries) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := q.Pool.QueryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

func (q *Queries) ListDocumentsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*model.Document, error) {
	rows, err := q.Pool.Query(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE patient_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3",
		patientID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	out := []*model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return out, nil
}
