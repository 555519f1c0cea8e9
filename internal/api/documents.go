package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"clinicdocs/internal/auth"
	"clinicdocs/internal/jobs"
	"clinicdocs/internal/model"
	"clinicdocs/internal/service"
	"clinicdocs/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SubmitDocumentResponse struct {
	Document *model.Document `json:"document"`
	Values   model.FormData  `json:"values"`
}

func (d Dependencies) submitDocument(w http.ResponseWriter, r *http.Request) {
	var input service.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if input.TemplateID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "templateId is required", d.Log)
		return
	}
	input.DoctorID = auth.GetDoctorID(r.Context())

	doc, result, err := d.Documents.Submit(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitDocumentResponse{Document: doc, Values: result.SanitizedValues})
}

func (d Dependencies) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := d.Documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (d Dependencies) documentPagePlan(w http.ResponseWriter, r *http.Request) {
	plan, err := d.Documents.PagePlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// renderedDocument streams the artifact written by the render job
func (d Dependencies) renderedDocument(w http.ResponseWriter, r *http.Request) {
	if d.Storage == nil {
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Storage is not configured", d.Log)
		return
	}

	id := chi.URLParam(r, "id")
	rc, err := d.Storage.Get(r.Context(), jobs.PagePlanObject(id))
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_rendered", "Document has not been rendered yet", d.Log)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), d.Log)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, rc); err != nil {
		d.Log.Warn("Failed to stream artifact", zap.String("document_id", id), zap.Error(err))
	}
}

func (d Dependencies) patientDocuments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := d.Documents.ListByPatient(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	if list == nil {
		list = []*model.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": list})
}

func (d Dependencies) patientActivity(w http.ResponseWriter, r *http.Request) {
	if d.Activity == nil {
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Activity feed is not configured", d.Log)
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	entries, err := d.Activity.Recent(r.Context(), "patient:"+chi.URLParam(r, "id"), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), d.Log)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activity": entries})
}
