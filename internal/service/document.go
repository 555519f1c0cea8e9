package service

import (
	"context"
	"errors"
	"fmt"

	"clinicdocs/internal/calc"
	"clinicdocs/internal/db"
	"clinicdocs/internal/layout"
	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"
	"clinicdocs/internal/submission"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DocumentStore persists filled documents. *db.Queries implements it.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d *model.Document) (*model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocumentsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*model.Document, error)
}

type DocumentService struct {
	templates   TemplateStore
	documents   DocumentStore
	loader      *prefill.Loader
	submissions *submission.Validator
	calc        *calc.Calculator
	bus         EventBus
	jobClient   JobClient
	log         *zap.Logger
}

func NewDocumentService(
	templates TemplateStore,
	documents DocumentStore,
	loader *prefill.Loader,
	submissions *submission.Validator,
	calculator *calc.Calculator,
	bus EventBus,
	log *zap.Logger,
) *DocumentService {
	return &DocumentService{
		templates:   templates,
		documents:   documents,
		loader:      loader,
		submissions: submissions,
		calc:        calculator,
		bus:         bus,
		log:         log,
	}
}

// SetJobClient sets the job client for scheduling background jobs
func (s *DocumentService) SetJobClient(client JobClient) {
	s.jobClient = client
}

func (s *DocumentService) template(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.templates.GetTemplate(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// FillState is what a client needs to start filling a template
type FillState struct {
	Template *model.Template        `json:"template"`
	Values   model.FormData         `json:"values"`
	ReadOnly []string               `json:"readOnly"`
	Computed map[string]calc.Result `json:"computed"`
	Layout   []layout.RenderRow     `json:"layout"`
}

// Prefill resolves the initial values of a template for the given records
func (s *DocumentService) Prefill(ctx context.Context, templateID string, req prefill.Request) (*FillState, error) {
	t, err := s.template(ctx, templateID)
	if err != nil {
		return nil, err
	}

	data := s.loader.Load(ctx, req)
	values := prefill.Seed(t.Schema, data)
	readOnly := prefill.ReadOnlyFields(t.Schema)
	if readOnly == nil {
		readOnly = []string{}
	}

	return &FillState{
		Template: t,
		Values:   values,
		ReadOnly: readOnly,
		Computed: s.calc.ComputeAll(t.Schema, values),
		Layout:   layout.EditorGrid(t.Schema),
	}, nil
}

type SubmitInput struct {
	TemplateID    string         `json:"templateId"`
	PatientID     string         `json:"patientId,omitempty"`
	AppointmentID string         `json:"appointmentId,omitempty"`
	Place         string         `json:"place,omitempty"`
	Values        model.FormData `json:"values"`

	// DoctorID comes from the authenticated caller, never the body
	DoctorID string `json:"-"`
}

// Submit validates a filled form and stores it as an immutable document.
// Only the sanitized values are persisted.
func (s *DocumentService) Submit(ctx context.Context, input SubmitInput) (*model.Document, *submission.Result, error) {
	t, err := s.template(ctx, input.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	req := prefill.Request{
		PatientID:     input.PatientID,
		DoctorID:      input.DoctorID,
		AppointmentID: input.AppointmentID,
		Place:         input.Place,
	}
	result, err := s.submissions.ValidateSubmission(ctx, t.Schema, input.Values, req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to validate submission: %w", err)
	}
	if !result.Valid {
		if result.Tampered() {
			s.log.Warn("Rejected tampered submission",
				zap.String("template_id", t.ID),
				zap.String("patient_id", input.PatientID),
				zap.String("doctor_id", input.DoctorID),
			)
		}
		return nil, result, &SubmissionError{Result: result}
	}

	doc, err := s.documents.CreateDocument(ctx, &model.Document{
		ID:            ulid.Make().String(),
		TemplateID:    t.ID,
		PatientID:     input.PatientID,
		DoctorID:      input.DoctorID,
		AppointmentID: input.AppointmentID,
		Schema:        t.Schema.Clone(),
		Values:        result.SanitizedValues,
	})
	if err != nil {
		return nil, result, fmt.Errorf("failed to create document: %w", err)
	}

	event := map[string]interface{}{
		"type":       "document.created",
		"documentId": doc.ID,
		"templateId": doc.TemplateID,
	}
	_ = s.bus.PublishDocument(doc.ID, event)
	if doc.PatientID != "" {
		_ = s.bus.PublishPatient(doc.PatientID, event)
	}

	if s.jobClient != nil {
		if err := s.jobClient.EnqueueRender(doc.ID); err != nil {
			s.log.Warn("Failed to enqueue document render", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}

	s.log.Info("Document created", zap.String("document_id", doc.ID), zap.String("template_id", t.ID))
	return doc, result, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	d, err := s.documents.GetDocument(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}

func (s *DocumentService) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*model.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.documents.ListDocumentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return list, nil
}

// PagePlan lays out a stored document from its own snapshots
func (s *DocumentService) PagePlan(ctx context.Context, id string) (*layout.PagePlan, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	plan := layout.BuildPagePlan(d.Schema, d.Values)
	return &plan, nil
}
