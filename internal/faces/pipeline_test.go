package faces

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/database/mock"
	"github.com/rs/zerolog"
)

// fakeAnalyzer returns canned boxes keyed by a marker in the image bytes.
type fakeAnalyzer struct {
	mu         sync.Mutex
	boxes      map[string][]database.BBox
	detectErr  map[string]error
	embedCalls int
}

func (f *fakeAnalyzer) key(image []byte) string {
	for k := range f.boxes {
		if bytes.Contains(image, []byte(k)) {
			return k
		}
	}
	for k := range f.detectErr {
		if bytes.Contains(image, []byte(k)) {
			return k
		}
	}
	return ""
}

func (f *fakeAnalyzer) Detect(ctx context.Context, image []byte) ([]database.BBox, error) {
	k := f.key(image)
	if err := f.detectErr[k]; err != nil {
		return nil, err
	}
	return f.boxes[k], nil
}

func (f *fakeAnalyzer) Embed(ctx context.Context, image []byte, boxes []database.BBox) ([][]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	f.mu.Unlock()
	out := make([][]float32, len(boxes))
	for i := range boxes {
		out[i] = []float32{float32(i), 0.5}
	}
	return out, nil
}

func seedAssets(t *testing.T, c *mock.Catalog, dir string, files map[string]string) map[string]string {
	t.Helper()
	paths := map[string]string{}
	var assets []database.Asset
	for name, content := range files {
		p := filepath.Join(dir, name)
		if content != "" {
			if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		paths[name] = p
		assets = append(assets, database.Asset{Path: p, Kind: database.KindPhoto, Year: "2024", Month: "01"})
	}
	if err := c.InsertAssets(context.Background(), assets); err != nil {
		t.Fatal(err)
	}
	return paths
}

func TestPipeline_MarksEveryAssetScanned(t *testing.T) {
	dir := t.TempDir()
	catalog := mock.NewCatalog()
	paths := seedAssets(t, catalog, dir, map[string]string{
		"none.jpg":   "ZERO",
		"one.jpg":    "SINGLE",
		"two.jpg":    "PAIR",
		"broken.jpg": "BROKEN",
	})

	analyzer := &fakeAnalyzer{
		boxes: map[string][]database.BBox{
			"SINGLE": {{Top: 0, Right: 10, Bottom: 10, Left: 0}},
			"PAIR": {
				{Top: 0, Right: 10, Bottom: 10, Left: 0},
				{Top: 20, Right: 40, Bottom: 40, Left: 20},
				{Top: 0, Right: 10, Bottom: 10, Left: 0}, // duplicate detection
			},
		},
		detectErr: map[string]error{"BROKEN": errors.New("model crashed")},
	}

	var mu sync.Mutex
	var faceEvents, errorEvents int
	lastPercent := -1
	p := NewPipeline(catalog, analyzer, 2, zerolog.Nop())
	res, err := p.Run(context.Background(), func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Type {
		case EventFace:
			faceEvents++
			if ev.Face == nil || ev.Face.ID == 0 {
				t.Errorf("face event without stored face: %+v", ev)
			}
		case EventError:
			errorEvents++
		case EventProgress:
			if ev.Percent < lastPercent {
				t.Errorf("progress went backwards: %d after %d", ev.Percent, lastPercent)
			}
			lastPercent = ev.Percent
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Total != 4 || res.Processed != 4 || res.Faces != 3 || res.Failed != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if faceEvents != 3 || errorEvents != 1 {
		t.Errorf("faceEvents=%d errorEvents=%d", faceEvents, errorEvents)
	}
	if lastPercent != 100 {
		t.Errorf("expected final progress 100, got %d", lastPercent)
	}

	ctx := context.Background()
	for name, path := range paths {
		a, err := catalog.GetAsset(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		if !a.FaceScanned {
			t.Errorf("%s not marked scanned", name)
		}
		if len(a.ContentHash) != 16 {
			t.Errorf("%s has no content hash: %q", name, a.ContentHash)
		}
	}
	if unscanned, _ := catalog.ListUnscanned(ctx); len(unscanned) != 0 {
		t.Errorf("expected no unscanned assets, got %d", len(unscanned))
	}
	if analyzer.embedCalls != 2 {
		t.Errorf("embed must be skipped when nothing is detected, got %d calls", analyzer.embedCalls)
	}

	// A second pass has nothing to do.
	res, err = p.Run(ctx, nil)
	if err != nil || res.Total != 0 {
		t.Errorf("second pass = %+v, %v", res, err)
	}
}

func TestPipeline_UnreadableAssetStaysUnscanned(t *testing.T) {
	dir := t.TempDir()
	catalog := mock.NewCatalog()
	paths := seedAssets(t, catalog, dir, map[string]string{"vanished.jpg": ""})

	p := NewPipeline(catalog, &fakeAnalyzer{}, 1, zerolog.Nop())
	res, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || len(res.Errors) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	a, _ := catalog.GetAsset(context.Background(), paths["vanished.jpg"])
	if a.FaceScanned {
		t.Error("unreadable asset must not be marked scanned")
	}
}

func TestPipeline_SaveErrorSkips(t *testing.T) {
	dir := t.TempDir()
	catalog := mock.NewCatalog()
	paths := seedAssets(t, catalog, dir, map[string]string{"one.jpg": "SINGLE"})
	catalog.SaveError = errors.New("disk full")

	analyzer := &fakeAnalyzer{boxes: map[string][]database.BBox{"SINGLE": {{Top: 0, Right: 10, Bottom: 10, Left: 0}}}}
	res, _ := NewPipeline(catalog, analyzer, 1, zerolog.Nop()).Run(context.Background(), nil)
	if res.Skipped != 1 {
		t.Errorf("expected skipped asset, got %+v", res)
	}
	a, _ := catalog.GetAsset(context.Background(), paths["one.jpg"])
	if a.FaceScanned {
		t.Error("asset whose faces were not stored must stay unscanned")
	}
}

func TestPipeline_ServiceDownLeavesAssetsUnscanned(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	dir := t.TempDir()
	catalog := mock.NewCatalog()
	files := map[string]string{}
	for i := range 8 {
		files[fmt.Sprintf("%d.jpg", i)] = fmt.Sprintf("IMG%d", i)
	}
	seedAssets(t, catalog, dir, files)

	client := NewClient(config.FacesConfig{URL: url})
	res, err := NewPipeline(catalog, client, 2, zerolog.Nop()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 8 || res.Skipped != 8 || res.Failed != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	unscanned, err := catalog.ListUnscanned(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(unscanned) != 8 {
		t.Errorf("expected all 8 assets left for the next scan, got %d", len(unscanned))
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	dir := t.TempDir()
	catalog := mock.NewCatalog()
	seedAssets(t, catalog, dir, map[string]string{"a.jpg": "A", "b.jpg": "B"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewPipeline(catalog, &fakeAnalyzer{}, 1, zerolog.Nop()).Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if res.Processed != 0 {
		t.Errorf("expected nothing processed, got %d", res.Processed)
	}
}

func TestPrepareImage_DownscalesAndUnscales(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := range 400 {
		img.Set(x, 100, color.White)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	payload, scale := prepareImage(buf.Bytes(), 100)
	if scale != 0.25 {
		t.Fatalf("scale = %v, want 0.25", scale)
	}
	decoded, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("payload not decodable: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("payload size %v, want 100x50", b)
	}

	got := unscaleBox(database.BBox{Top: 10, Right: 30, Bottom: 20, Left: 5}, scale)
	want := database.BBox{Top: 40, Right: 120, Bottom: 80, Left: 20}
	if got != want {
		t.Errorf("unscaleBox = %+v, want %+v", got, want)
	}

	raw := []byte("not an image")
	if p, s := prepareImage(raw, 100); s != 1 || !bytes.Equal(p, raw) {
		t.Error("undecodable data must pass through unchanged")
	}
}
