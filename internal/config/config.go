package config

import (
	_ "embed"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/visagevault/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed media.yaml
var mediaYAML []byte

type Config struct {
	Library   LibraryConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Faces     FacesConfig
	Cluster   ClusterConfig
	Scheduler SchedulerConfig
	Log       LogConfig
	Web       WebConfig

	// SettingsPath is the user settings file the values above were merged from.
	SettingsPath string
}

type LibraryConfig struct {
	Dir             string   // root directory of the media collection
	PhotoExtensions []string `yaml:"photo_extensions"`
	VideoExtensions []string `yaml:"video_extensions"`
	ScanSchedule    string   // cron expression for periodic rescans, empty disables
	Watch           bool     // rescan on filesystem changes while serving
	Exif            bool     // read embedded capture dates through exiftool
	ExiftoolPath    string   // defaults to exiftool on PATH
}

type DatabaseConfig struct {
	URL          string // sqlite://path, postgres://..., mysql://...
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type CacheConfig struct {
	Dir           string // defaults to .visagevault_cache
	ThumbnailSize int    // bounding box edge in pixels (default 128)
	FFmpegPath    string // defaults to ffmpeg on PATH
}

type FacesConfig struct {
	URL         string        // face service base URL, defaults to http://localhost:8000
	RPS         float64       // request rate limit against the face service
	Timeout     time.Duration // per-request timeout
	Concurrency int           // assets analyzed in parallel
}

type ClusterConfig struct {
	Eps        float64
	MinSamples int
}

type SchedulerConfig struct {
	Workers         int // short-task pool size, defaults to runtime.NumCPU
	PreloadMarginPx int
	ShutdownTimeout time.Duration
	ViewportIdle    time.Duration // sessions without a stream expire after this
}

type LogConfig struct {
	Level      string
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float environment variable.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envSeconds reads a duration given in whole seconds.
func envSeconds(key string, defaultVal time.Duration) time.Duration {
	n := envInt(key, 0)
	if n == 0 {
		return defaultVal
	}
	return time.Duration(n) * time.Second
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// defaultMedia returns the embedded extension allow-lists.
func defaultMedia() LibraryConfig {
	var media LibraryConfig
	if err := yaml.Unmarshal(mediaYAML, &media); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded media.yaml: " + err.Error())
	}
	return media
}

// Load builds the configuration from the environment and the user settings file.
// A settings file that cannot be parsed is ignored; the returned error reports it
// so the caller can warn while continuing with defaults.
func Load() (*Config, error) {
	settingsPath := envString("VISAGEVAULT_SETTINGS", DefaultSettingsFile)
	settings, settingsErr := LoadSettings(settingsPath)

	media := defaultMedia()
	if len(settings.PhotoExtensions) > 0 {
		media.PhotoExtensions = settings.PhotoExtensions
	}
	if len(settings.VideoExtensions) > 0 {
		media.VideoExtensions = settings.VideoExtensions
	}

	thumbSize := constants.DefaultThumbnailSize
	if settings.ThumbnailSize > 0 {
		thumbSize = settings.ThumbnailSize
	}

	cfg := &Config{
		Library: LibraryConfig{
			Dir:             envString("LIBRARY_DIR", settings.PhotoDirectory),
			PhotoExtensions: normalizeExtensions(media.PhotoExtensions),
			VideoExtensions: normalizeExtensions(media.VideoExtensions),
			ScanSchedule:    os.Getenv("SCAN_SCHEDULE"),
			Watch:           envBool("LIBRARY_WATCH", false),
			Exif:            envBool("LIBRARY_EXIF", true),
			ExiftoolPath:    os.Getenv("EXIFTOOL_PATH"),
		},
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", "sqlite://visagevault.db"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Cache: CacheConfig{
			Dir:           envString("CACHE_DIR", ".visagevault_cache"),
			ThumbnailSize: envInt("THUMBNAIL_SIZE", thumbSize),
			FFmpegPath:    envString("FFMPEG_PATH", "ffmpeg"),
		},
		Faces: FacesConfig{
			URL:         os.Getenv("FACE_API_URL"),
			RPS:         envFloat("FACE_API_RPS", 10),
			Timeout:     envSeconds("FACE_API_TIMEOUT", 60*time.Second),
			Concurrency: envInt("FACE_CONCURRENCY", constants.DefaultFaceConcurrency),
		},
		Cluster: ClusterConfig{
			Eps:        envFloat("CLUSTER_EPS", constants.DefaultClusterEps),
			MinSamples: envInt("CLUSTER_MIN_SAMPLES", constants.DefaultClusterMinSamples),
		},
		Scheduler: SchedulerConfig{
			Workers:         envInt("SCHEDULER_WORKERS", runtime.NumCPU()),
			PreloadMarginPx: envInt("PRELOAD_MARGIN_PX", constants.DefaultPreloadMarginPx),
			ShutdownTimeout: envSeconds("SHUTDOWN_TIMEOUT", constants.DefaultShutdownTimeout),
			ViewportIdle:    envSeconds("VIEWPORT_IDLE_TIMEOUT", constants.DefaultViewportIdleTimeout),
		},
		Log: LogConfig{
			Level:      envString("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: splitList(os.Getenv("WEB_ALLOWED_ORIGINS")),
		},
		SettingsPath: settingsPath,
	}

	return cfg, settingsErr
}

// normalizeExtensions lowercases extensions and ensures a leading dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
