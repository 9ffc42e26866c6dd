package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/dates"
	"github.com/kozaktomas/visagevault/internal/library"
	"github.com/rs/zerolog"
)

// AssetsHandler serves the catalog's temporal grouping and date edits.
type AssetsHandler struct {
	app *app.App
	log zerolog.Logger
}

// NewAssetsHandler creates a new assets handler.
func NewAssetsHandler(a *app.App, log zerolog.Logger) *AssetsHandler {
	return &AssetsHandler{app: a, log: log}
}

type assetsResponse struct {
	Kind   database.MediaKind `json:"kind"`
	Count  int                `json:"count"`
	Years  []string           `json:"years"`
	Groups library.Groups     `json:"groups"`
}

// List returns the stored assets of ?kind= (default photo) grouped year → month → paths.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := database.MediaKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = database.KindPhoto
	}
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, "kind must be photo or video")
		return
	}

	buckets, err := h.app.Catalog.LoadBuckets(r.Context(), kind)
	if err != nil {
		h.log.Error().Err(err).Msg("load buckets failed")
		respondErr(w, err)
		return
	}
	groups := library.GroupBuckets(buckets)
	respondJSON(w, http.StatusOK, assetsResponse{
		Kind:   kind,
		Count:  len(buckets),
		Years:  groups.Years(),
		Groups: groups,
	})
}

type dateResponse struct {
	Path      string `json:"path"`
	Year      string `json:"year"`
	Month     string `json:"month"`
	MonthName string `json:"month_name"`
}

// GetDate returns the stored bucket of ?path=.
func (h *AssetsHandler) GetDate(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	asset, err := h.app.Catalog.GetAsset(r.Context(), path)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dateResponse{
		Path:      asset.Path,
		Year:      asset.Year,
		Month:     asset.Month,
		MonthName: dates.MonthName(asset.Month),
	})
}

type metadataResponse struct {
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields"`
	Taken  string         `json:"taken,omitempty"`
}

// GetMetadata returns the embedded metadata tags (EXIF and friends) of ?path=.
func (h *AssetsHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	fields, err := h.app.AssetMetadata(r.Context(), path)
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, app.ErrNoMetadataReader):
		respondErr(w, err)
		return
	case err != nil:
		h.log.Warn().Err(err).Str("path", sanitizeForLog(path)).Msg("metadata read failed")
		respondError(w, http.StatusUnprocessableEntity, "metadata unavailable")
		return
	}
	resp := metadataResponse{Path: path, Fields: fields}
	if t, ok := dates.CaptureTime(fields); ok {
		resp.Taken = t.Format(time.DateTime)
	}
	respondJSON(w, http.StatusOK, resp)
}

type setDateRequest struct {
	Path  string `json:"path"`
	Year  string `json:"year"`
	Month string `json:"month"`
}

// SetDate validates and stores a user date edit. Invalid input never reaches the store.
func (h *AssetsHandler) SetDate(w http.ResponseWriter, r *http.Request) {
	var req setDateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	bucket, err := dates.ParseEdit(req.Year, req.Month)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := h.app.Catalog.UpdateBucket(r.Context(), req.Path, bucket); err != nil {
		respondErr(w, err)
		return
	}
	h.log.Info().Str("path", sanitizeForLog(req.Path)).Str("year", bucket.Year).Str("month", bucket.Month).Msg("date updated")
	respondJSON(w, http.StatusOK, dateResponse{
		Path:      req.Path,
		Year:      bucket.Year,
		Month:     bucket.Month,
		MonthName: dates.MonthName(bucket.Month),
	})
}
