package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/visagevault/internal/cluster"
	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/database/mock"
	"github.com/kozaktomas/visagevault/internal/jobs"
	"github.com/rs/zerolog"
)

// nearAnalyzer finds one face in files containing "FACE" and embeds every
// face at nearly the same point, so all of them cluster together.
type nearAnalyzer struct{}

func (nearAnalyzer) Detect(ctx context.Context, image []byte) ([]database.BBox, error) {
	if !bytes.Contains(image, []byte("FACE")) {
		return nil, nil
	}
	return []database.BBox{{Top: 1, Right: 11, Bottom: 11, Left: 1}}, nil
}

func (nearAnalyzer) Embed(ctx context.Context, image []byte, boxes []database.BBox) ([][]float32, error) {
	out := make([][]float32, len(boxes))
	for i := range boxes {
		out[i] = []float32{float32(len(image)) * 0.001, 0}
	}
	return out, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Library: config.LibraryConfig{
			Dir:             t.TempDir(),
			PhotoExtensions: []string{".jpg"},
			VideoExtensions: []string{".mp4"},
		},
		Cache:     config.CacheConfig{Dir: t.TempDir(), ThumbnailSize: 64},
		Faces:     config.FacesConfig{Concurrency: 2},
		Cluster:   config.ClusterConfig{Eps: 0.5, MinSamples: 2},
		Scheduler: config.SchedulerConfig{Workers: 2, ShutdownTimeout: time.Second},
	}
}

func newTestApp(t *testing.T) (*App, *mock.Catalog) {
	t.Helper()
	catalog := mock.NewCatalog()
	a, err := New(testConfig(t), catalog, Options{Analyzer: nearAnalyzer{}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(time.Second) })
	return a, catalog
}

func runScan(t *testing.T, a *App, kind jobs.Kind) *jobs.Job {
	t.Helper()
	job, err := a.StartScan(kind)
	if err != nil {
		t.Fatalf("StartScan(%s): %v", kind, err)
	}
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s scan did not finish", kind)
	}
	if job.GetStatus() != jobs.StatusCompleted {
		t.Fatalf("%s scan ended %s: %s", kind, job.GetStatus(), job.Err())
	}
	return job
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanFacesClusterReview(t *testing.T) {
	a, catalog := newTestApp(t)
	ctx := context.Background()
	dir := a.Config.Library.Dir

	write(t, filepath.Join(dir, "2024", "IMG_20240601_1.jpg"), "FACE one")
	write(t, filepath.Join(dir, "2024", "IMG_20240601_2.jpg"), "FACE two")
	write(t, filepath.Join(dir, "landscape.jpg"), "mountains")
	write(t, filepath.Join(dir, "clip.mp4"), "video")

	runScan(t, a, jobs.KindPhoto)
	if n, _ := catalog.CountAssets(ctx, database.KindPhoto); n != 3 {
		t.Fatalf("expected 3 photos, got %d", n)
	}
	if n, _ := catalog.CountAssets(ctx, database.KindVideo); n != 0 {
		t.Fatalf("expected photo scan to leave videos alone, got %d", n)
	}
	runScan(t, a, jobs.KindVideo)
	if n, _ := catalog.CountAssets(ctx, database.KindVideo); n != 1 {
		t.Fatalf("expected 1 video, got %d", n)
	}

	runScan(t, a, jobs.KindFaces)
	if unscanned, _ := catalog.ListUnscanned(ctx); len(unscanned) != 0 {
		t.Fatalf("expected every photo scanned, %d left", len(unscanned))
	}

	runScan(t, a, jobs.KindCluster)
	review := a.Review()
	if review == nil {
		t.Fatal("expected a review session after clustering")
	}
	c, ok := review.Current()
	if !ok || len(c.Faces) != 2 {
		t.Fatalf("expected one cluster of two faces, got %+v ok=%v", c, ok)
	}
	if _, err := review.AcceptNew(ctx, "Alice"); err != nil {
		t.Fatalf("AcceptNew: %v", err)
	}
	if eligible, _ := catalog.ListEligibleFaces(ctx); len(eligible) != 0 {
		t.Errorf("expected no eligible faces after accept, got %d", len(eligible))
	}
}

func TestStartScanWithoutLibrary(t *testing.T) {
	a, _ := newTestApp(t)
	a.Config.Library.Dir = ""
	if _, err := a.StartScan(jobs.KindPhoto); !errors.Is(err, ErrNoLibrary) {
		t.Errorf("expected ErrNoLibrary, got %v", err)
	}
	if _, err := a.StartScan(jobs.Kind("audio")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestSetReviewCancelsPrevious(t *testing.T) {
	a, catalog := newTestApp(t)
	first := cluster.NewReview(catalog, nil)
	a.SetReview(first)
	a.SetReview(cluster.NewReview(catalog, nil))
	if !first.Summary().Cancelled {
		t.Error("expected replaced review to be cancelled")
	}
}

type stubMetadata map[string]any

func (s stubMetadata) ReadMetadata(path string) (map[string]any, error) {
	return s, nil
}

func TestAssetMetadata(t *testing.T) {
	ctx := context.Background()
	catalog := mock.NewCatalog()
	if err := catalog.InsertAssets(ctx, []database.Asset{{Path: "/lib/a.jpg", Kind: database.KindPhoto, Year: "2019", Month: "03"}}); err != nil {
		t.Fatal(err)
	}

	a, err := New(testConfig(t), catalog, Options{
		Analyzer: nearAnalyzer{},
		Metadata: stubMetadata{"SourceFile": "/lib/a.jpg", "Make": "Canon", "DateTimeOriginal": "2019:03:04 10:11:12"},
	}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Shutdown(time.Second) })
	fields, err := a.AssetMetadata(ctx, "/lib/a.jpg")
	if err != nil {
		t.Fatalf("AssetMetadata: %v", err)
	}
	if len(fields) != 2 || fields["Make"] != "Canon" {
		t.Errorf("unexpected fields %v", fields)
	}
	if _, err := a.AssetMetadata(ctx, "/lib/missing.jpg"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	plain, _ := newTestApp(t)
	if err := plain.Catalog.InsertAssets(ctx, []database.Asset{{Path: "/lib/b.jpg", Kind: database.KindPhoto, Year: "2019", Month: "03"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := plain.AssetMetadata(ctx, "/lib/b.jpg"); !errors.Is(err, ErrNoMetadataReader) {
		t.Errorf("expected ErrNoMetadataReader, got %v", err)
	}
}
