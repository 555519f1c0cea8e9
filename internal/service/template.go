package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinicdocs/internal/db"
	"clinicdocs/internal/layout"
	"clinicdocs/internal/legacy"
	"clinicdocs/internal/model"
	"clinicdocs/internal/validator"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// TemplateStore persists templates. *db.Queries implements it.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *model.Template) (*model.Template, error)
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]*model.Template, error)
	UpdateTemplate(ctx context.Context, t *model.Template) (*model.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

type EventBus interface {
	PublishTemplate(templateID string, event map[string]interface{}) error
	PublishDocument(documentID string, event map[string]interface{}) error
	PublishPatient(patientID string, event map[string]interface{}) error
}

type TemplateService struct {
	store TemplateStore
	bus   EventBus
	log   *zap.Logger
}

func NewTemplateService(store TemplateStore, bus EventBus, log *zap.Logger) *TemplateService {
	return &TemplateService{store: store, bus: bus, log: log}
}

type TemplateInput struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Schema      model.Schema `json:"schema"`
	CreatedBy   string       `json:"-"`
}

// ValidateSchema runs the schema validator without saving anything
func (s *TemplateService) ValidateSchema(schema model.Schema) validator.Result {
	return validator.Validate(schema)
}

// prepare gates a schema on the validator and rewrites its layout hints
func (s *TemplateService) prepare(schema model.Schema) (model.Schema, validator.Result, error) {
	if schema.Version == 0 {
		schema.Version = model.SchemaVersion
	}
	if schema.Elements == nil {
		schema.Elements = []model.Element{}
	}
	report := validator.Validate(schema)
	if !report.Valid {
		return schema, report, &SchemaError{Report: report}
	}
	return layout.Reindex(schema), report, nil
}

func (s *TemplateService) Create(ctx context.Context, input TemplateInput) (*model.Template, *validator.Result, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}

	schema, report, err := s.prepare(input.Schema)
	if err != nil {
		return nil, &report, err
	}

	t, err := s.store.CreateTemplate(ctx, &model.Template{
		ID:          ulid.Make().String(),
		Name:        name,
		Description: input.Description,
		Schema:      schema,
		CreatedBy:   input.CreatedBy,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create template: %w", err)
	}

	_ = s.bus.PublishTemplate(t.ID, map[string]interface{}{
		"type":       "template.created",
		"templateId": t.ID,
	})
	s.log.Info("Template created",
		zap.String("template_id", t.ID),
		zap.Int("elements", len(schema.Elements)),
		zap.Int("warnings", len(report.Warnings)),
	)
	return t, &report, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) List(ctx context.Context, limit, offset int) ([]*model.Template, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.store.ListTemplates(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return list, nil
}

func (s *TemplateService) Update(ctx context.Context, id string, input TemplateInput) (*model.Template, *validator.Result, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	schema, report, err := s.prepare(input.Schema)
	if err != nil {
		return nil, &report, err
	}

	current.Schema = schema
	if name := strings.TrimSpace(input.Name); name != "" {
		current.Name = name
	}
	current.Description = input.Description

	t, err := s.store.UpdateTemplate(ctx, current)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update template: %w", err)
	}

	_ = s.bus.PublishTemplate(t.ID, map[string]interface{}{
		"type":       "template.updated",
		"templateId": t.ID,
	})
	return t, &report, nil
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteTemplate(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	_ = s.bus.PublishTemplate(id, map[string]interface{}{
		"type":       "template.deleted",
		"templateId": id,
	})
	return nil
}

// ImportResult is a template created from a legacy definition
type ImportResult struct {
	Template  *model.Template   `json:"template"`
	Migration *legacy.Result    `json:"migration"`
	Report    *validator.Result `json:"report"`
}

// Import migrates a V1 (or V2) template definition and saves it
func (s *TemplateService) Import(ctx context.Context, name string, raw []byte, createdBy string) (*ImportResult, error) {
	migrated, err := legacy.Migrate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	t, report, err := s.Create(ctx, TemplateInput{Name: name, Schema: migrated.Schema, CreatedBy: createdBy})
	if err != nil {
		return &ImportResult{Migration: migrated, Report: report}, err
	}

	s.log.Info("Legacy template imported",
		zap.String("template_id", t.ID),
		zap.Bool("already_v2", migrated.AlreadyV2),
		zap.Int("changes", len(migrated.Changes)),
		zap.Strings("warnings", migrated.Warnings),
	)
	return &ImportResult{Template: t, Migration: migrated, Report: report}, nil
}
