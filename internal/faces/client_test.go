package faces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/sony/gobreaker"
)

func TestClient_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"faces": [[10, 60, 70, 5], [100, 150, 160, 90]]}`))
	}))
	defer server.Close()

	c := NewClient(config.FacesConfig{URL: server.URL + "/"})
	boxes, err := c.Detect(context.Background(), []byte("\xff\xd8\xffimage"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := []database.BBox{{Top: 10, Right: 60, Bottom: 70, Left: 5}, {Top: 100, Right: 150, Bottom: 160, Left: 90}}
	if len(boxes) != 2 || boxes[0] != want[0] || boxes[1] != want[1] {
		t.Errorf("Detect = %+v, want %+v", boxes, want)
	}
}

func TestClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var boxes []database.BBox
		if err := json.Unmarshal([]byte(r.FormValue("boxes")), &boxes); err != nil {
			t.Errorf("bad boxes field: %v", err)
		}
		out := make([][]float32, len(boxes))
		for i := range out {
			out[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer server.Close()

	c := NewClient(config.FacesConfig{URL: server.URL})
	vecs, err := c.Embed(context.Background(), []byte("img"), []database.BBox{{Top: 1, Right: 2, Bottom: 2, Left: 1}, {Top: 3, Right: 4, Bottom: 4, Left: 3}})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[1][0] != 1 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}

func TestClient_EmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings": [[1, 2]]}`))
	}))
	defer server.Close()

	c := NewClient(config.FacesConfig{URL: server.URL})
	_, err := c.Embed(context.Background(), []byte("img"), make([]database.BBox, 2))
	if !errors.Is(err, ErrCountMismatch) {
		t.Errorf("expected ErrCountMismatch, got %v", err)
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(config.FacesConfig{URL: server.URL})
	for range 5 {
		_, err := c.Detect(context.Background(), []byte("img"))
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
			t.Fatalf("expected APIError 500, got %v", err)
		}
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("server error must count as unavailable: %v", err)
		}
	}

	_, err := c.Detect(context.Background(), []byte("img"))
	if !errors.Is(err, gobreaker.ErrOpenState) || !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected open breaker, got %v", err)
	}
	if hits.Load() != 5 {
		t.Errorf("expected the open breaker to skip the request, got %d hits", hits.Load())
	}
	if c.State() != "open" {
		t.Errorf("State = %s, want open", c.State())
	}
}

func TestClient_ClientErrorsKeepBreakerClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported image", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewClient(config.FacesConfig{URL: server.URL})
	for range 8 {
		_, err := c.Detect(context.Background(), []byte("img"))
		if err == nil {
			t.Fatal("expected error")
		}
		if errors.Is(err, ErrUnavailable) {
			t.Fatalf("rejected image must not count as unavailable: %v", err)
		}
	}
	if c.State() != "closed" {
		t.Errorf("State = %s, want closed", c.State())
	}
}

func TestClient_UnreachableIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(config.FacesConfig{URL: url})
	_, err := c.Detect(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Detect(ctx, []byte("img")); errors.Is(err, ErrUnavailable) {
		t.Errorf("cancellation must not count as unavailable: %v", err)
	}
}
