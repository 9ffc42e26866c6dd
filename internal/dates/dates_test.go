package dates

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/visagevault/internal/database"
)

func fixedNow() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestResolve_Filename(t *testing.T) {
	r := &FileResolver{Now: fixedNow}
	tests := []struct {
		name string
		want database.Bucket
	}{
		{"IMG_20240615_123456.jpg", database.Bucket{Year: "2024", Month: "06"}},
		{"2023-01-05 beach.png", database.Bucket{Year: "2023", Month: "01"}},
		{"scan_1998_11.tif", database.Bucket{Year: "1998", Month: "11"}},
		{"VID-2019.12.24-party.mp4", database.Bucket{Year: "2019", Month: "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.fromName(tt.name)
			if !ok {
				t.Fatalf("expected %q to match a pattern", tt.name)
			}
			if got != tt.want {
				t.Errorf("fromName(%q) = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}
}

func TestResolve_FilenameRejects(t *testing.T) {
	r := &FileResolver{Now: fixedNow}
	for _, name := range []string{
		"holiday.jpg",
		"IMG_1234.jpg",
		"20241345.jpg",    // invalid month
		"120240615.jpg",   // embedded in a longer number
		"20990101_x.jpg",  // in the future
		"1850-04-01.jpg",  // outside the accepted range
	} {
		if b, ok := r.fromName(name); ok {
			t.Errorf("fromName(%q) matched %+v, want no match", name, b)
		}
	}
}

func TestResolve_ModTimeFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2023, 1, 15, 12, 0, 0, 0, time.Local)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	got := NewFileResolver().Resolve(path)
	if got.Year != "2023" || got.Month != "01" {
		t.Errorf("expected 2023/01 from mtime, got %+v", got)
	}
}

func TestResolve_MissingFile(t *testing.T) {
	got := NewFileResolver().Resolve(filepath.Join(t.TempDir(), "gone.jpg"))
	if got != Unknown {
		t.Errorf("expected unknown bucket, got %+v", got)
	}
}

func TestParseEdit(t *testing.T) {
	tests := []struct {
		year, month string
		want        database.Bucket
		wantErr     error
	}{
		{"2024", "6", database.Bucket{Year: "2024", Month: "06"}, nil},
		{"2024", "12", database.Bucket{Year: "2024", Month: "12"}, nil},
		{"unknown", "00", database.Bucket{Year: "unknown", Month: "00"}, nil},
		{"2024", "00", database.Bucket{Year: "2024", Month: "00"}, nil},
		{"24", "06", database.Bucket{}, ErrInvalidYear},
		{"20a4", "06", database.Bucket{}, ErrInvalidYear},
		{"", "06", database.Bucket{}, ErrInvalidYear},
		{"+202", "05", database.Bucket{}, ErrInvalidYear},
		{"-999", "05", database.Bucket{}, ErrInvalidYear},
		{"+999", "05", database.Bucket{}, ErrInvalidYear},
		{" 202", "05", database.Bucket{}, ErrInvalidYear},
		{"2024", "13", database.Bucket{}, ErrInvalidMonth},
		{"2024", "0", database.Bucket{}, ErrInvalidMonth},
		{"2024", "june", database.Bucket{}, ErrInvalidMonth},
		{"2024", "006", database.Bucket{}, ErrInvalidMonth},
		{"2024", "+6", database.Bucket{}, ErrInvalidMonth},
		{"2024", "-1", database.Bucket{}, ErrInvalidMonth},
		{"2024", "1 ", database.Bucket{}, ErrInvalidMonth},
	}
	for _, tt := range tests {
		got, err := ParseEdit(tt.year, tt.month)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseEdit(%q, %q) error = %v, want %v", tt.year, tt.month, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseEdit(%q, %q) unexpected error: %v", tt.year, tt.month, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEdit(%q, %q) = %+v, want %+v", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestMonthName(t *testing.T) {
	if got := MonthName("06"); got != "June" {
		t.Errorf("MonthName(06) = %q", got)
	}
	if got := MonthName("00"); got != "Unknown" {
		t.Errorf("MonthName(00) = %q", got)
	}
}
