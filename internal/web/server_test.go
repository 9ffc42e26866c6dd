package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database/mock"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Library:   config.LibraryConfig{Dir: t.TempDir(), PhotoExtensions: []string{".jpg"}},
		Cache:     config.CacheConfig{Dir: t.TempDir(), ThumbnailSize: 64},
		Scheduler: config.SchedulerConfig{Workers: 1, PreloadMarginPx: 100},
		Web:       config.WebConfig{Host: "127.0.0.1", Port: 9999, AllowedOrigins: []string{"https://photos.example.com"}},
	}
	a, err := app.New(cfg, mock.NewCatalog(), app.Options{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Shutdown(time.Second) })
	return NewServer(a, zerolog.Nop())
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)
	if s.Addr() != "127.0.0.1:9999" {
		t.Errorf("unexpected addr %s", s.Addr())
	}

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/jobs", http.StatusOK},
		{http.MethodGet, "/api/v1/jobs/nope", http.StatusNotFound},
		{http.MethodPost, "/api/v1/scans/audio", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/scans/photo", http.StatusNotFound},
		{http.MethodGet, "/api/v1/assets?kind=photo", http.StatusOK},
		{http.MethodGet, "/api/v1/assets/metadata", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/faces", http.StatusOK},
		{http.MethodGet, "/api/v1/faces/42", http.StatusNotFound},
		{http.MethodGet, "/api/v1/faces/abc", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/identities", http.StatusOK},
		{http.MethodGet, "/api/v1/clusters", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/viewports/missing", http.StatusNotFound},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodPatch, "/api/v1/jobs", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://photos.example.com", "https://photos.example.com"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("preflight returned %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("expected allow-origin %q, got %q", tt.want, got)
			}
		})
	}
}
