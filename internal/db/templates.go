package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clinicdocs/internal/model"

	"github.com/jackc/pgx/v5"
)

const templateColumns = "id, name, description, schema, created_by, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*model.Template, error) {
	var (
		t   model.Template
		raw []byte
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &raw, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &t.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode template schema: %w", err)
	}
	return &t, nil
}

func (q *Queries) CreateTemplate(ctx context.Context, t *model.Template) (*model.Template, error) {
	schemaJSON, err := json.Marshal(t.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	row := q.Pool.QueryRow(ctx,
		`INSERT INTO templates (id, name, description, schema, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+templateColumns,
		t.ID, t.Name, t.Description, schemaJSON, t.CreatedBy,
	)
	created, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return created, nil
}

func (q *Queries) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := q.Pool.QueryRow(ctx, "SELECT "+templateColumns+" FROM templates WHERE id = $1", id)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (q *Queries) ListTemplates(ctx context.Context, limit, offset int) ([]*model.Template, error) {
	rows, err := q.Pool.Query(ctx,
		"SELECT "+templateColumns+" FROM templates ORDER BY updated_at DESC, id LIMIT $1 OFFSET $2",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	out := []*model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return out, nil
}

func (q *Queries) UpdateTemplate(ctx context.Context, t *model.Template) (*model.Template, error) {
	schemaJSON, err := json.Marshal(t.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	row := q.Pool.QueryRow(ctx,
		`UPDATE templates SET name = $2, description = $3, schema = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+templateColumns,
		t.ID, t.Name, t.Description, schemaJSON,
	)
	updated, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return updated, nil
}

func (q *Queries) DeleteTemplate(ctx context.Context, id string) error {
	result, err := q.Pool.Exec(ctx, "DELETE FROM templates WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
