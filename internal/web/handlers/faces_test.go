package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/rs/zerolog"
)

func TestFacesHandler_GetAndCrop(t *testing.T) {
	a, catalog := newTestApp(t)
	path := writePNG(t, a.Config.Library.Dir, "portrait.png", 100, 100)
	asset := seedAsset(t, catalog, path, "2024", "01")
	faces := seedFaces(t, catalog, asset.ID, []float32{0, 0})
	id := faces[0].ID

	h := NewFacesHandler(a, zerolog.Nop())
	params := map[string]string{"id": itoa(id)}

	rec := httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), params))
	assertStatusCode(t, rec, http.StatusOK)
	var view app.FaceView
	parseJSONResponse(t, rec, &view)
	if view.ID != id || view.AssetPath != path {
		t.Errorf("unexpected face %+v", view)
	}

	rec = httptest.NewRecorder()
	h.Crop(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), params))
	assertStatusCode(t, rec, http.StatusOK)
	assertContentType(t, rec, "image/jpeg")

	rec = httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "999"}))
	assertStatusCode(t, rec, http.StatusNotFound)

	rec = httptest.NewRecorder()
	h.Get(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "abc"}))
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "invalid id")
}

func TestFacesHandler_DeleteRestoreLabel(t *testing.T) {
	a, catalog := newTestApp(t)
	ctx := context.Background()
	asset := seedAsset(t, catalog, "/lib/a.jpg", "2024", "01")
	id := seedFaces(t, catalog, asset.ID, []float32{0, 0})[0].ID
	params := map[string]string{"id": itoa(id)}
	h := NewFacesHandler(a, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Delete(rec, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), params))
	assertStatusCode(t, rec, http.StatusOK)
	if f, _ := catalog.GetFace(ctx, id); !f.Deleted {
		t.Fatal("expected face deleted")
	}

	// Labeling a deleted face clears the tombstone.
	rec = httptest.NewRecorder()
	h.Label(rec, requestWithChiParams(jsonRequest(http.MethodPost, "/", labelRequest{Name: "  Ada  Lovelace "}), params))
	assertStatusCode(t, rec, http.StatusOK)
	var view app.FaceView
	parseJSONResponse(t, rec, &view)
	if view.Deleted || view.IdentityID == nil || view.IdentityName != "Ada Lovelace" {
		t.Errorf("unexpected labeled face %+v", view)
	}

	// Relabeling replaces the label.
	bob, _ := catalog.EnsureIdentity(ctx, "Bob")
	rec = httptest.NewRecorder()
	h.Label(rec, requestWithChiParams(jsonRequest(http.MethodPost, "/", labelRequest{IdentityID: bob.ID}), params))
	assertStatusCode(t, rec, http.StatusOK)
	if f, _ := catalog.GetFace(ctx, id); f.IdentityID == nil || *f.IdentityID != bob.ID {
		t.Errorf("expected face relabeled to Bob, got %+v", f)
	}

	rec = httptest.NewRecorder()
	h.Unlabel(rec, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), params))
	assertStatusCode(t, rec, http.StatusOK)
	if eligible, _ := catalog.ListEligibleFaces(ctx); len(eligible) != 1 {
		t.Errorf("expected face eligible again, got %d", len(eligible))
	}

	rec = httptest.NewRecorder()
	h.Delete(rec, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), params))
	rec = httptest.NewRecorder()
	h.Restore(rec, requestWithChiParams(httptest.NewRequest(http.MethodPost, "/", nil), params))
	assertStatusCode(t, rec, http.StatusOK)
	if f, _ := catalog.GetFace(ctx, id); f.Deleted {
		t.Error("expected face restored")
	}
}

func TestFacesHandler_LabelValidation(t *testing.T) {
	a, catalog := newTestApp(t)
	asset := seedAsset(t, catalog, "/lib/a.jpg", "2024", "01")
	id := seedFaces(t, catalog, asset.ID, []float32{0, 0})[0].ID
	h := NewFacesHandler(a, zerolog.Nop())

	tests := []struct {
		name       string
		faceID     string
		body       any
		wantStatus int
	}{
		{"no identity", itoa(id), labelRequest{}, http.StatusBadRequest},
		{"blank name", itoa(id), labelRequest{Name: "   "}, http.StatusBadRequest},
		{"unknown identity", itoa(id), labelRequest{IdentityID: 999}, http.StatusNotFound},
		{"unknown face", "999", labelRequest{Name: "Ada"}, http.StatusNotFound},
		{"malformed body", itoa(id), "not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Label(rec, requestWithChiParams(jsonRequest(http.MethodPost, "/", tt.body), map[string]string{"id": tt.faceID}))
			assertStatusCode(t, rec, tt.wantStatus)
		})
	}
}

func TestFacesHandler_Counts(t *testing.T) {
	a, catalog := newTestApp(t)
	asset := seedAsset(t, catalog, "/lib/a.jpg", "2024", "01")
	seedFaces(t, catalog, asset.ID, []float32{0}, []float32{1})

	rec := httptest.NewRecorder()
	NewFacesHandler(a, zerolog.Nop()).Counts(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assertStatusCode(t, rec, http.StatusOK)
	var counts struct {
		Total    int `json:"total"`
		Eligible int `json:"eligible"`
	}
	parseJSONResponse(t, rec, &counts)
	if counts.Total != 2 || counts.Eligible != 2 {
		t.Errorf("unexpected counts %+v", counts)
	}
}

func TestIdentitiesHandler(t *testing.T) {
	a, catalog := newTestApp(t)
	ctx := context.Background()
	asset := seedAsset(t, catalog, "/lib/a.jpg", "2024", "01")
	faces := seedFaces(t, catalog, asset.ID, []float32{0}, []float32{1})
	ada, _ := catalog.EnsureIdentity(ctx, "Ada")
	_ = catalog.AssignIdentity(ctx, []int64{faces[0].ID, faces[1].ID}, ada.ID)
	h := NewIdentitiesHandler(a)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assertStatusCode(t, rec, http.StatusOK)
	var list []identityResponse
	parseJSONResponse(t, rec, &list)
	if len(list) != 1 || list[0].Name != "Ada" || list[0].FaceCount != 2 {
		t.Errorf("unexpected identities %+v", list)
	}

	params := map[string]string{"id": itoa(ada.ID)}
	rec = httptest.NewRecorder()
	h.Faces(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), params))
	assertStatusCode(t, rec, http.StatusOK)
	var faceViews []app.FaceView
	parseJSONResponse(t, rec, &faceViews)
	if len(faceViews) != 2 {
		t.Errorf("expected 2 faces, got %d", len(faceViews))
	}

	rec = httptest.NewRecorder()
	h.Rename(rec, requestWithChiParams(jsonRequest(http.MethodPut, "/", renameRequest{Name: "Ada Lovelace"}), params))
	assertStatusCode(t, rec, http.StatusOK)
	var renamed identityResponse
	parseJSONResponse(t, rec, &renamed)
	if renamed.Name != "Ada Lovelace" {
		t.Errorf("expected renamed identity, got %+v", renamed)
	}

	rec = httptest.NewRecorder()
	h.Rename(rec, requestWithChiParams(jsonRequest(http.MethodPut, "/", renameRequest{Name: ""}), params))
	assertStatusCode(t, rec, http.StatusBadRequest)

	rec = httptest.NewRecorder()
	h.Faces(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "999"}))
	assertStatusCode(t, rec, http.StatusNotFound)
}
