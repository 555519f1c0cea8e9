package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clinicdocs/internal/auth"
	"clinicdocs/internal/calc"
	"clinicdocs/internal/db"
	"clinicdocs/internal/jobs"
	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"
	"clinicdocs/internal/schema"
	"clinicdocs/internal/service"
	"clinicdocs/internal/storage"
	"clinicdocs/internal/submission"
	"clinicdocs/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu        sync.Mutex
	templates map[string]*model.Template
	documents map[string]*model.Document
}

func (m *memStore) CreateTemplate(_ context.Context, t *model.Template) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	m.templates[c.ID] = &c
	return &c, nil
}

func (m *memStore) GetTemplate(_ context.Context, id string) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *memStore) ListTemplates(_ context.Context, _, _ int) ([]*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Template
	for _, t := range m.templates {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (m *memStore) UpdateTemplate(_ context.Context, t *model.Template) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.ID]; !ok {
		return nil, db.ErrNotFound
	}
	c := *t
	m.templates[c.ID] = &c
	return &c, nil
}

func (m *memStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *memStore) CreateDocument(_ context.Context, d *model.Document) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	m.documents[c.ID] = &c
	return &c, nil
}

func (m *memStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (m *memStore) ListDocumentsByPatient(_ context.Context, patientID string, _, _ int) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Document
	for _, d := range m.documents {
		if d.PatientID == patientID {
			c := *d
			out = append(out, &c)
		}
	}
	return out, nil
}

type nopBus struct{}

func (nopBus) PublishTemplate(string, map[string]interface{}) error { return nil }
func (nopBus) PublishDocument(string, map[string]interface{}) error { return nil }
func (nopBus) PublishPatient(string, map[string]interface{}) error  { return nil }

type sources struct{}

func (sources) FetchPatient(_ context.Context, id string) (*model.PatientRecord, error) {
	if id != "p1" {
		return nil, nil
	}
	return &model.PatientRecord{ID: "p1", Name: "John Doe", DateOfBirth: "1990-01-20"}, nil
}

func (sources) FetchDoctor(_ context.Context, id string) (*model.DoctorRecord, error) {
	return &model.DoctorRecord{ID: id, Name: "Dr. Mehta"}, nil
}

func (sources) FetchAppointment(context.Context, string) (*model.AppointmentRecord, error) {
	return nil, nil
}

type testServer struct {
	*httptest.Server
	store   *memStore
	storage *storage.LocalStorage
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	clock := func() time.Time { return time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC) }

	store := &memStore{templates: map[string]*model.Template{}, documents: map[string]*model.Document{}}
	files, err := storage.NewLocalStorage(t.TempDir(), "http://example.test/v1")
	require.NoError(t, err)

	calculator := calc.New(clock)
	loader := prefill.NewLoader(sources{}, clock, log)
	validator := submission.NewValidator(loader, schema.NewCompilerWithCache(16), calculator, log)
	templates := service.NewTemplateService(store, nopBus{}, log)
	documents := service.NewDocumentService(store, store, loader, validator, calculator, nopBus{}, log)

	hub := ws.NewHub(calculator, log)
	hub.SetTemplateLoader(templates)
	hub.SetPrefillLoader(loader)
	go hub.Run()

	r := chi.NewRouter()
	r.Mount("/v1", Routes(Dependencies{
		Templates: templates,
		Documents: documents,
		Calc:      calculator,
		Hub:       hub,
		Storage:   files,
		JWT:       auth.NewJWTConfig("secret", true),
		Log:       log,
	}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, storage: files}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

func visitSchema() map[string]interface{} {
	return map[string]interface{}{
		"version": 2,
		"elements": []interface{}{
			map[string]interface{}{
				"id": "1", "type": "patientName", "label": "Patient", "name": "patient_name",
				"properties": map[string]interface{}{}, "position": map[string]interface{}{"width": 12},
				"prefill": map[string]interface{}{"enabled": true, "source": "patient", "field": "patient_name", "readonly": true},
			},
			map[string]interface{}{
				"id": "2", "type": "number", "label": "Weight", "name": "weight", "required": true,
				"properties": map[string]interface{}{}, "position": map[string]interface{}{"width": 6},
			},
			map[string]interface{}{
				"id": "3", "type": "number", "label": "Height", "name": "height",
				"properties": map[string]interface{}{}, "position": map[string]interface{}{"width": 6},
			},
			map[string]interface{}{
				"id": "4", "type": "calculated", "label": "BMI", "name": "bmi",
				"properties": map[string]interface{}{"calculation": "bmi"}, "position": map[string]interface{}{"width": 12},
			},
		},
	}
}

func (s *testServer) createTemplate(t *testing.T) string {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/v1/templates", map[string]interface{}{
		"name": "Visit", "schema": visitSchema(),
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	tpl := body["template"].(map[string]interface{})
	return tpl["id"].(string)
}

func TestTemplates_CreateGetDelete(t *testing.T) {
	s := setupTestServer(t)
	id := s.createTemplate(t)

	resp, body := s.do(t, http.MethodGet, "/v1/templates/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Visit", body["name"])

	resp, body = s.do(t, http.MethodGet, "/v1/templates", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["templates"], 1)

	resp, _ = s.do(t, http.MethodDelete, "/v1/templates/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/v1/templates/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
}

func TestTemplates_CreateInvalidSchema(t *testing.T) {
	s := setupTestServer(t)
	bad := visitSchema()
	bad["elements"].([]interface{})[2].(map[string]interface{})["name"] = "weight"

	resp, body := s.do(t, http.MethodPost, "/v1/templates", map[string]interface{}{"name": "Visit", "schema": bad}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_schema", body["error"])

	details := body["details"].(map[string]interface{})
	assert.Equal(t, false, details["valid"])
	assert.NotEmpty(t, details["errors"])
}

func TestTemplates_CreateBadBody(t *testing.T) {
	s := setupTestServer(t)
	req, err := http.NewRequest(http.MethodPost, s.URL+"/v1/templates", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTemplates_Validate(t *testing.T) {
	s := setupTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/v1/templates/validate", map[string]interface{}{
		"version":  2,
		"elements": []interface{}{},
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Len(t, body["warnings"], 1)
}

func TestTemplates_Import(t *testing.T) {
	s := setupTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/v1/templates/import", map[string]interface{}{
		"name":       "Legacy",
		"definition": map[string]interface{}{"variables": []string{"patient_name", "weight"}, "content": "<p></p>"},
	}, map[string]string{"X-Doctor-ID": "d1"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)

	migration := body["migration"].(map[string]interface{})
	assert.NotEmpty(t, migration["warnings"])
	tpl := body["template"].(map[string]interface{})
	assert.Equal(t, "d1", tpl["createdBy"])

	resp, _ = s.do(t, http.MethodPost, "/v1/templates/import", map[string]interface{}{"name": "Empty"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTemplates_LayoutAndPrefill(t *testing.T) {
	s := setupTestServer(t)
	id := s.createTemplate(t)

	resp, body := s.do(t, http.MethodGet, "/v1/templates/"+id+"/layout", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["rows"], 3)

	resp, body = s.do(t, http.MethodPost, "/v1/templates/"+id+"/prefill",
		map[string]interface{}{"patientId": "p1"}, map[string]string{"X-Doctor-ID": "d1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	values := body["values"].(map[string]interface{})
	assert.Equal(t, "John Doe", values["patient_name"])
	assert.Equal(t, []interface{}{"patient_name"}, body["readOnly"])
}

func TestCalculate(t *testing.T) {
	s := setupTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/v1/calculate", map[string]interface{}{
		"schema": visitSchema(),
		"values": map[string]interface{}{"weight": 70, "height": 175},
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].(map[string]interface{})
	assert.Equal(t, 22.9, results["bmi"])
}

func TestDocuments_Submit(t *testing.T) {
	s := setupTestServer(t)
	id := s.createTemplate(t)
	doctor := map[string]string{"X-Doctor-ID": "d1"}

	submit := func(values map[string]interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
		return s.do(t, http.MethodPost, "/v1/documents", map[string]interface{}{
			"templateId": id,
			"patientId":  "p1",
			"values":     values,
		}, headers)
	}

	resp, _ := submit(map[string]interface{}{"weight": 70}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := submit(map[string]interface{}{"patient_name": "Jane Roe", "weight": 70}, doctor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "tampered", body["error"])
	details := body["details"].([]interface{})
	assert.Equal(t, "tampered", details[0].(map[string]interface{})["code"])

	resp, body = submit(map[string]interface{}{"patient_name": "John Doe"}, doctor)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_submission", body["error"])

	resp, body = submit(map[string]interface{}{"patient_name": "John Doe", "weight": 70, "height": 175, "doctor_id": "evil"}, doctor)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	doc := body["document"].(map[string]interface{})
	assert.Equal(t, "d1", doc["doctorId"])
	docID := doc["id"].(string)
	values := body["values"].(map[string]interface{})
	assert.Equal(t, 22.9, values["bmi"])
	assert.NotContains(t, values, "doctor_id")

	resp, body = s.do(t, http.MethodGet, "/v1/documents/"+docID+"/page-plan", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["rows"], 3)

	resp, body = s.do(t, http.MethodGet, "/v1/patients/p1/documents", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["documents"], 1)

	resp, body = s.do(t, http.MethodGet, "/v1/documents/"+docID+"/rendered", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_rendered", body["error"])

	// what the render job writes
	require.NoError(t, s.storage.Put(context.Background(), jobs.PagePlanObject(docID), strings.NewReader(`{"rows":[]}`)))
	resp, body = s.do(t, http.MethodGet, "/v1/documents/"+docID+"/rendered", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{}, body["rows"])
}

func TestAssets_UploadAndServe(t *testing.T) {
	s := setupTestServer(t)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/v1/assets?name=logo.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "image/png")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var meta storage.AssetMetadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, strings.HasPrefix(meta.URL, "http://example.test/v1/files/assets/"))

	resp, err = http.Get(s.URL + "/v1/files/" + meta.Object)
	require.NoError(t, err)
	got, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(got))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	req, err = http.NewRequest(http.MethodPost, s.URL+"/v1/assets?name=notes.txt", strings.NewReader("text"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_LiveCalculation(t *testing.T) {
	s := setupTestServer(t)
	id := s.createTemplate(t)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Doctor-ID": []string{"d1"}})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "open", "templateId": id}))
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "values", "seq": 1, "values": map[string]interface{}{"weight": 70, "height": 175},
	}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var frame map[string]interface{}
		require.NoError(t, conn.ReadJSON(&frame))
		// the schema alone may already have produced a result
		if frame["type"] != "computed" || frame["seq"] == float64(0) {
			continue
		}
		assert.Equal(t, float64(1), frame["seq"])
		results := frame["results"].(map[string]interface{})
		assert.Equal(t, 22.9, results["bmi"])
		return
	}
}

func readFrame(t *testing.T, conn *websocket.Conn, frameType string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var frame map[string]interface{}
		require.NoError(t, conn.ReadJSON(&frame))
		if frame["type"] == frameType {
			return frame
		}
	}
}

func TestWebSocket_PrefillAndEditing(t *testing.T) {
	s := setupTestServer(t)
	id := s.createTemplate(t)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-Doctor-ID": []string{"d1"}})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "open", "templateId": id, "patientId": "p1"}))
	prefilled := readFrame(t, conn, "prefill")
	assert.Equal(t, "John Doe", prefilled["values"].(map[string]interface{})["patient_name"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "edit", "op": "add", "args": map[string]interface{}{"type": "text"},
	}))
	edited := readFrame(t, conn, "schema")
	assert.Len(t, edited["schema"].(map[string]interface{})["elements"], 5)
	assert.Equal(t, true, edited["canUndo"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "undo"}))
	undone := readFrame(t, conn, "schema")
	assert.Len(t, undone["schema"].(map[string]interface{})["elements"], 4)
	assert.Equal(t, true, undone["canRedo"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "edit", "op": "rename"}))
	failed := readFrame(t, conn, "error")
	assert.Equal(t, "invalid_edit", failed["code"])
}
