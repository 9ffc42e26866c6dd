package handlers

import (
	"net/http"

	"github.com/kozaktomas/visagevault/internal/app"
)

// ThumbnailsHandler serves cached previews of catalog assets.
type ThumbnailsHandler struct {
	app *app.App
}

// NewThumbnailsHandler creates a new thumbnails handler.
func NewThumbnailsHandler(a *app.App) *ThumbnailsHandler {
	return &ThumbnailsHandler{app: a}
}

// Get serves the preview of ?path=, generating it on first request. Only
// paths known to the catalog are served.
func (h *ThumbnailsHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if _, err := h.app.Catalog.GetAsset(r.Context(), path); err != nil {
		respondErr(w, err)
		return
	}
	cached := h.app.Thumbs.GetOrCreate(r.Context(), path)
	if cached == "" {
		respondError(w, http.StatusUnprocessableEntity, "thumbnail unavailable")
		return
	}
	serveCached(w, r, cached)
}

func serveCached(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, path)
}
