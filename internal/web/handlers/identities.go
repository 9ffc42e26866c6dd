package handlers

import (
	"net/http"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/database"
)

// IdentitiesHandler handles person endpoints.
type IdentitiesHandler struct {
	app *app.App
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(a *app.App) *IdentitiesHandler {
	return &IdentitiesHandler{app: a}
}

type identityResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	FaceCount int    `json:"face_count"`
}

func toIdentityResponse(i database.Identity) identityResponse {
	return identityResponse{ID: i.ID, Name: i.Name, FaceCount: i.FaceCount}
}

// List returns every identity with its face count, ordered by name.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.app.Catalog.ListIdentities(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	out := make([]identityResponse, len(identities))
	for i, id := range identities {
		out[i] = toIdentityResponse(id)
	}
	respondJSON(w, http.StatusOK, out)
}

// Faces returns the faces labeled with an identity.
func (h *IdentitiesHandler) Faces(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.app.Catalog.GetIdentity(r.Context(), id); err != nil {
		respondErr(w, err)
		return
	}
	faces, err := h.app.Catalog.FacesByIdentity(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app.FaceViews(faces))
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename changes an identity's display name.
func (h *IdentitiesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.app.Catalog.RenameIdentity(r.Context(), id, req.Name); err != nil {
		respondErr(w, err)
		return
	}
	identity, err := h.app.Catalog.GetIdentity(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(*identity))
}
