package dates

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"
)

// ErrNoMetadata is returned when an embedded-metadata read yields nothing.
var ErrNoMetadata = errors.New("no embedded metadata")

// MetadataReader returns the embedded metadata tags of a media file, keyed by
// tag name (DateTimeOriginal, Make, Model, ...).
type MetadataReader interface {
	ReadMetadata(path string) (map[string]any, error)
}

// Capture-date tags in order of preference. ModifyDate is EXIF DateTime.
var captureTags = []string{"DateTimeOriginal", "CreateDate", "ModifyDate"}

const exifLayout = "2006:01:02 15:04:05"

// Exiftool reads metadata through one long-running exiftool process.
// Requests are serialized because the process answers one file at a time.
type Exiftool struct {
	mu sync.Mutex
	et *exiftool.Exiftool
}

var _ MetadataReader = (*Exiftool)(nil)

// NewExiftool starts exiftool. An empty binary uses exiftool on PATH.
func NewExiftool(binary string) (*Exiftool, error) {
	var opts []func(*exiftool.Exiftool) error
	if binary != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binary))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &Exiftool{et: et}, nil
}

// ReadMetadata implements MetadataReader.
func (e *Exiftool) ReadMetadata(path string) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.et.ExtractMetadata(path)
	if len(out) == 0 {
		return nil, ErrNoMetadata
	}
	if out[0].Err != nil {
		return nil, out[0].Err
	}
	return out[0].Fields, nil
}

// Close stops the exiftool process.
func (e *Exiftool) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.et.Close()
}

// CaptureTime returns the first usable capture date among the metadata tags.
// Zeroed dates written by some cameras are ignored.
func CaptureTime(fields map[string]any) (time.Time, bool) {
	for _, tag := range captureTags {
		v, ok := fields[tag].(string)
		if !ok || len(v) < len(exifLayout) {
			continue
		}
		t, err := time.Parse(exifLayout, v[:len(exifLayout)])
		if err != nil || t.Year() < 1 {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// ExifFields drops the file system entries exiftool reports alongside the
// embedded tags.
func ExifFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "SourceFile" || k == "Directory" || k == "ExifToolVersion" || strings.HasPrefix(k, "File") {
			continue
		}
		out[k] = v
	}
	return out
}
