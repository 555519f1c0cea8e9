package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"clinicdocs/internal/auth"
	"clinicdocs/internal/layout"
	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"
	"clinicdocs/internal/service"

	"github.com/go-chi/chi/v5"
)

type TemplateResponse struct {
	Template *model.Template `json:"template"`
	Warnings interface{}     `json:"warnings"`
}

type ImportTemplateRequest struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

type CalculateRequest struct {
	Schema model.Schema   `json:"schema"`
	Values model.FormData `json:"values"`
}

type LayoutResponse struct {
	Rows     []layout.RenderRow `json:"rows"`
	PagePlan layout.PagePlan    `json:"pagePlan"`
}

func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func (d Dependencies) createTemplate(w http.ResponseWriter, r *http.Request) {
	var input service.TemplateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	input.CreatedBy = auth.GetDoctorID(r.Context())

	t, report, err := d.Templates.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}

	writeJSON(w, http.StatusCreated, TemplateResponse{Template: t, Warnings: report.Warnings})
}

func (d Dependencies) listTemplates(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := d.Templates.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	if list == nil {
		list = []*model.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": list})
}

func (d Dependencies) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := d.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (d Dependencies) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var input service.TemplateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}

	t, report, err := d.Templates.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, TemplateResponse{Template: t, Warnings: report.Warnings})
}

func (d Dependencies) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := d.Templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateTemplate reports on a schema without saving it
func (d Dependencies) validateTemplate(w http.ResponseWriter, r *http.Request) {
	var s model.Schema
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	writeJSON(w, http.StatusOK, d.Templates.ValidateSchema(s))
}

func (d Dependencies) importTemplate(w http.ResponseWriter, r *http.Request) {
	var req ImportTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if len(req.Definition) == 0 {
		WriteError(w, http.StatusBadRequest, "invalid_request", "definition is required", d.Log)
		return
	}

	result, err := d.Templates.Import(r.Context(), req.Name, req.Definition, auth.GetDoctorID(r.Context()))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (d Dependencies) templateLayout(w http.ResponseWriter, r *http.Request) {
	t, err := d.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, LayoutResponse{
		Rows:     layout.EditorGrid(t.Schema),
		PagePlan: layout.BuildPagePlan(t.Schema, nil),
	})
}

// prefillTemplate resolves the initial values of a template. The doctor is
// always the caller.
func (d Dependencies) prefillTemplate(w http.ResponseWriter, r *http.Request) {
	var req prefill.Request
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
			return
		}
	}
	req.DoctorID = auth.GetDoctorID(r.Context())

	state, err := d.Documents.Prefill(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// calculate evaluates every calculated field of a schema against values
func (d Dependencies) calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if req.Values == nil {
		req.Values = model.FormData{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": d.Calc.ComputeAll(req.Schema, req.Values),
	})
}
