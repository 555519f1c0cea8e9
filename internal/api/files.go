package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"clinicdocs/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// uploadAsset stores an image for image and documentHeader elements. The raw
// body is the file; ?name= carries the original file name.
func (d Dependencies) uploadAsset(w http.ResponseWriter, r *http.Request) {
	if d.Storage == nil {
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Storage is not configured", d.Log)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "name parameter required", d.Log)
		return
	}
	contentType := r.Header.Get("Content-Type")

	object := "assets/" + ulid.Make().String()
	if ext := storage.Extension(name); ext != "" {
		object += "." + ext
	}

	meta, err := storage.PutAsset(r.Context(), d.Storage, storage.ImagePolicy(), object, name, contentType, r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_file", err.Error(), d.Log)
		return
	}

	d.Log.Info("Asset uploaded", zap.String("object", meta.Object), zap.Int64("size", meta.Size))
	writeJSON(w, http.StatusCreated, meta)
}

// serveFile streams a stored object at the URL storage handed out
func (d Dependencies) serveFile(w http.ResponseWriter, r *http.Request) {
	if d.Storage == nil {
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Storage is not configured", d.Log)
		return
	}

	object := chi.URLParam(r, "*")
	rc, err := d.Storage.Get(r.Context(), object)
	if errors.Is(err, storage.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "not_found", "File not found", d.Log)
		return
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), d.Log)
		return
	}
	defer rc.Close()

	ext := storage.Extension(object)
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else if strings.HasSuffix(object, ".json") {
		w.Header().Set("Content-Type", "application/json")
	}
	if _, err := io.Copy(w, rc); err != nil {
		d.Log.Warn("Failed to stream file", zap.String("object", object), zap.Error(err))
	}
}
