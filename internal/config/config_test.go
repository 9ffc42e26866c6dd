package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// isolate points the settings file at an empty temp dir so a developer's
// visagevault.yaml never leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	t.Setenv("VISAGEVAULT_SETTINGS", path)
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("THUMBNAIL_SIZE")
	os.Unsetenv("SCHEDULER_WORKERS")
	os.Unsetenv("LIBRARY_EXIF")
	os.Unsetenv("VIEWPORT_IDLE_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.URL != "sqlite://visagevault.db" {
		t.Errorf("expected default sqlite URL, got '%s'", cfg.Database.URL)
	}
	if cfg.Cache.ThumbnailSize != 128 {
		t.Errorf("expected default thumbnail size 128, got %d", cfg.Cache.ThumbnailSize)
	}
	if cfg.Scheduler.Workers != runtime.NumCPU() {
		t.Errorf("expected %d workers, got %d", runtime.NumCPU(), cfg.Scheduler.Workers)
	}
	if cfg.Cluster.MinSamples != 2 {
		t.Errorf("expected min samples 2, got %d", cfg.Cluster.MinSamples)
	}
	if cfg.Scheduler.PreloadMarginPx != 500 {
		t.Errorf("expected preload margin 500, got %d", cfg.Scheduler.PreloadMarginPx)
	}
	if cfg.Scheduler.ViewportIdle != 10*time.Minute {
		t.Errorf("expected viewport idle timeout 10m, got %s", cfg.Scheduler.ViewportIdle)
	}
	if !cfg.Library.Exif {
		t.Error("expected embedded metadata reading on by default")
	}
}

func TestLoad_EmbeddedExtensions(t *testing.T) {
	isolate(t)

	cfg, _ := Load()

	photos := map[string]bool{}
	for _, e := range cfg.Library.PhotoExtensions {
		photos[e] = true
	}
	for _, want := range []string{".jpg", ".jpeg", ".png", ".tiff", ".webp"} {
		if !photos[want] {
			t.Errorf("expected photo extension %s", want)
		}
	}

	videos := map[string]bool{}
	for _, e := range cfg.Library.VideoExtensions {
		videos[e] = true
	}
	for _, want := range []string{".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm", ".mpeg", ".mpg"} {
		if !videos[want] {
			t.Errorf("expected video extension %s", want)
		}
	}
}

func TestLoad_SettingsFileOverrides(t *testing.T) {
	path := isolate(t)
	os.Unsetenv("LIBRARY_DIR")
	os.Unsetenv("THUMBNAIL_SIZE")

	err := SaveSettings(path, Settings{
		PhotoDirectory:  "/photos",
		ThumbnailSize:   256,
		PhotoExtensions: []string{"JPG", ".heic"},
	})
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Library.Dir != "/photos" {
		t.Errorf("expected library dir '/photos', got '%s'", cfg.Library.Dir)
	}
	if cfg.Cache.ThumbnailSize != 256 {
		t.Errorf("expected thumbnail size 256, got %d", cfg.Cache.ThumbnailSize)
	}
	if len(cfg.Library.PhotoExtensions) != 2 || cfg.Library.PhotoExtensions[0] != ".jpg" || cfg.Library.PhotoExtensions[1] != ".heic" {
		t.Errorf("expected normalized [.jpg .heic], got %v", cfg.Library.PhotoExtensions)
	}
	if len(cfg.Library.VideoExtensions) == 0 {
		t.Error("expected video extensions to keep embedded defaults")
	}
}

func TestLoad_EnvBeatsSettings(t *testing.T) {
	path := isolate(t)
	if err := SaveSettings(path, Settings{PhotoDirectory: "/from-file", ThumbnailSize: 256}); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	t.Setenv("LIBRARY_DIR", "/from-env")
	t.Setenv("THUMBNAIL_SIZE", "64")

	cfg, _ := Load()

	if cfg.Library.Dir != "/from-env" {
		t.Errorf("expected '/from-env', got '%s'", cfg.Library.Dir)
	}
	if cfg.Cache.ThumbnailSize != 64 {
		t.Errorf("expected 64, got %d", cfg.Cache.ThumbnailSize)
	}
}

func TestLoad_CorruptSettings(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("photo_directory: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err == nil {
		t.Error("expected error for corrupt settings file")
	}
	if cfg == nil {
		t.Fatal("expected config with defaults despite corrupt settings")
	}
	if cfg.Cache.ThumbnailSize != 128 {
		t.Errorf("expected default thumbnail size, got %d", cfg.Cache.ThumbnailSize)
	}
}

func TestEnvHelpers(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "12", 12},
		{"invalid", "abc", 7},
		{"negative", "-3", 7},
		{"zero", "0", 7},
		{"empty", "", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", 7); got != tt.want {
				t.Errorf("envInt(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}

	t.Setenv("TEST_ENV_FLOAT", "0.35")
	if got := envFloat("TEST_ENV_FLOAT", 0.5); got != 0.35 {
		t.Errorf("envFloat = %f, want 0.35", got)
	}
	t.Setenv("TEST_ENV_BOOL", "true")
	if !envBool("TEST_ENV_BOOL", false) {
		t.Error("envBool = false, want true")
	}
	t.Setenv("TEST_ENV_SECONDS", "3")
	if got := envSeconds("TEST_ENV_SECONDS", time.Minute); got != 3*time.Second {
		t.Errorf("envSeconds = %v, want 3s", got)
	}
}

func TestUpdateSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	if err := UpdateSettings(path, func(s *Settings) { s.PhotoDirectory = "/a" }); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := UpdateSettings(path, func(s *Settings) { s.ThumbnailSize = 200 }); err != nil {
		t.Fatalf("second update: %v", err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.PhotoDirectory != "/a" || s.ThumbnailSize != 200 {
		t.Errorf("expected both updates to persist, got %+v", s)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.test , ,http://b.test")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("unexpected split result %v", got)
	}
}
