package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/database/mock"
	"github.com/rs/zerolog"
)

// testConfig creates a minimal config for testing
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Library: config.LibraryConfig{
			Dir:             t.TempDir(),
			PhotoExtensions: []string{".jpg", ".png"},
			VideoExtensions: []string{".mp4"},
		},
		Cache:     config.CacheConfig{Dir: t.TempDir(), ThumbnailSize: 64},
		Cluster:   config.ClusterConfig{Eps: 0.5, MinSamples: 2},
		Scheduler: config.SchedulerConfig{Workers: 2, PreloadMarginPx: 100},
	}
}

// newTestApp creates an app backed by the in-memory catalog
func newTestApp(t *testing.T) (*app.App, *mock.Catalog) {
	t.Helper()
	catalog := mock.NewCatalog()
	a, err := app.New(testConfig(t), catalog, app.Options{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(time.Second) })
	return a, catalog
}

// writePNG writes a solid-color PNG into the library and returns its path
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// seedAsset inserts a photo asset and returns it with its id
func seedAsset(t *testing.T, c *mock.Catalog, path, year, month string) *database.Asset {
	t.Helper()
	ctx := context.Background()
	if err := c.InsertAssets(ctx, []database.Asset{{Path: path, Kind: database.KindPhoto, Year: year, Month: month}}); err != nil {
		t.Fatal(err)
	}
	asset, err := c.GetAsset(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	return asset
}

// seedFaces stores faces with the given embeddings on an asset
func seedFaces(t *testing.T, c *mock.Catalog, assetID int64, embeddings ...[]float32) []database.Face {
	t.Helper()
	faces := make([]database.Face, len(embeddings))
	for i, e := range embeddings {
		faces[i] = database.Face{
			Embedding: e,
			Location:  database.BBox{Top: 10, Right: 40, Bottom: 40, Left: 10},
		}
	}
	saved, err := c.SaveFaces(context.Background(), assetID, faces)
	if err != nil {
		t.Fatal(err)
	}
	return saved
}

// jsonRequest creates a request with a JSON body
func jsonRequest(method, path string, body any) *http.Request {
	var r *http.Request
	if s, ok := body.(string); ok {
		r = httptest.NewRequest(method, path, strings.NewReader(s))
	} else {
		data, _ := json.Marshal(body)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	}
	r.Header.Set("Content-Type", "application/json")
	return r
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// itoa formats an id for a URL parameter
func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
