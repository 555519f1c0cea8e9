package api

import (
	"context"
	"net/http"

	"clinicdocs/internal/auth"
	"clinicdocs/internal/calc"
	"clinicdocs/internal/pubsub"
	"clinicdocs/internal/service"
	"clinicdocs/internal/storage"
	"clinicdocs/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ActivityFeed lists recent events of a channel. *pubsub.Activity implements it.
type ActivityFeed interface {
	Recent(ctx context.Context, channel string, limit int64) ([]pubsub.ActivityEntry, error)
}

type Dependencies struct {
	Templates *service.TemplateService
	Documents *service.DocumentService
	Calc      *calc.Calculator
	Hub       *ws.Hub
	Storage   storage.Storage
	Activity  ActivityFeed
	JWT       *auth.JWTConfig
	Log       *zap.Logger
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(d.Log))

	// anonymous access is allowed; submissions require a doctor
	if d.JWT == nil {
		d.JWT = auth.NewJWTConfig("", false)
	}
	r.Use(d.JWT.Middleware)

	// Template endpoints
	r.Post("/templates", d.createTemplate)
	r.Get("/templates", d.listTemplates)
	r.Post("/templates/validate", d.validateTemplate)
	r.Post("/templates/import", d.importTemplate)
	r.Get("/templates/{id}", d.getTemplate)
	r.Put("/templates/{id}", d.updateTemplate)
	r.Delete("/templates/{id}", d.deleteTemplate)
	r.Get("/templates/{id}/layout", d.templateLayout)
	r.Post("/templates/{id}/prefill", d.prefillTemplate)

	// Stateless calculation
	r.Post("/calculate", d.calculate)

	// Document endpoints
	r.With(auth.RequireDoctor).Post("/documents", d.submitDocument)
	r.Get("/documents/{id}", d.getDocument)
	r.Get("/documents/{id}/page-plan", d.documentPagePlan)
	r.Get("/documents/{id}/rendered", d.renderedDocument)
	r.Get("/patients/{id}/documents", d.patientDocuments)
	r.Get("/patients/{id}/activity", d.patientActivity)

	// Assets for image and letterhead elements, and stored artifacts
	r.Post("/assets", d.uploadAsset)
	r.Get("/files/*", d.serveFile)

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	return r
}
