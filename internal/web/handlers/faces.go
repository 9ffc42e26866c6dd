package handlers

import (
	"net/http"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/rs/zerolog"
)

// FacesHandler handles face inspection and labeling endpoints.
type FacesHandler struct {
	app *app.App
	log zerolog.Logger
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(a *app.App, log zerolog.Logger) *FacesHandler {
	return &FacesHandler{app: a, log: log}
}

// Counts returns the face totals by eligibility state.
func (h *FacesHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.app.Catalog.CountFaces(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// Get returns one face.
func (h *FacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	face, err := h.app.Catalog.GetFace(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app.NewFaceView(*face))
}

// Crop serves the cropped preview of a face.
func (h *FacesHandler) Crop(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	face, err := h.app.Catalog.GetFace(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	cached := h.app.Thumbs.FaceCrop(r.Context(), *face)
	if cached == "" {
		respondError(w, http.StatusUnprocessableEntity, "face crop unavailable")
		return
	}
	serveCached(w, r, cached)
}

// Delete soft-deletes a face, dropping its label.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, true)
}

// Restore clears a face's tombstone.
func (h *FacesHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, false)
}

func (h *FacesHandler) setDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Catalog.SetFacesDeleted(r.Context(), []int64{id}, deleted); err != nil {
		respondErr(w, err)
		return
	}
	h.respondFace(w, r, id)
}

type labelRequest struct {
	IdentityID int64  `json:"identity_id"`
	Name       string `json:"name"`
}

// Label assigns a face to an identity given by id or by name (created if new).
// The face's previous label is replaced and its tombstone cleared.
func (h *FacesHandler) Label(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req labelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.app.Catalog.GetFace(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}

	identityID := req.IdentityID
	switch {
	case identityID > 0:
		if _, err := h.app.Catalog.GetIdentity(r.Context(), identityID); err != nil {
			respondErr(w, err)
			return
		}
	case req.Name != "":
		identity, err := h.app.Catalog.EnsureIdentity(r.Context(), req.Name)
		if err != nil {
			respondErr(w, err)
			return
		}
		identityID = identity.ID
	default:
		respondError(w, http.StatusBadRequest, "identity_id or name is required")
		return
	}

	if err := h.app.Catalog.AssignIdentity(r.Context(), []int64{id}, identityID); err != nil {
		respondErr(w, err)
		return
	}
	h.log.Info().Int64("face", id).Int64("identity", identityID).Msg("face labeled")
	h.respondFace(w, r, id)
}

// Unlabel removes a face's label, making it eligible for clustering again.
func (h *FacesHandler) Unlabel(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.app.Catalog.ClearLabels(r.Context(), []int64{id}); err != nil {
		respondErr(w, err)
		return
	}
	h.respondFace(w, r, id)
}

func (h *FacesHandler) respondFace(w http.ResponseWriter, r *http.Request, id int64) {
	face, err := h.app.Catalog.GetFace(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app.NewFaceView(*face))
}
