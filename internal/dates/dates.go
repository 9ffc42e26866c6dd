// Package dates assigns capture-date buckets to media files and validates
// user edits of those buckets.
package dates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
)

var (
	// ErrInvalidYear is returned when a year edit is neither "unknown" nor four digits.
	ErrInvalidYear = errors.New("year must be 'unknown' or a four-digit year")
	// ErrInvalidMonth is returned when a month edit is outside 00-12.
	ErrInvalidMonth = errors.New("month must be '00' or between 1 and 12")
)

// Resolver assigns a bucket to a media file. Implementations never fail;
// unresolvable files land in the unknown bucket.
type Resolver interface {
	Resolve(path string) database.Bucket
}

// Unknown is the bucket for files without a resolvable date.
var Unknown = database.Bucket{Year: constants.UnknownYear, Month: constants.UnknownMonth}

var (
	editYear  = regexp.MustCompile(`^\d{4}$`)
	editMonth = regexp.MustCompile(`^\d{1,2}$`)
)

// Filename patterns, most specific first. Years are limited to 1900-2099.
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})[-_.](0[1-9]|1[0-2])[-_.](0[1-9]|[12]\d|3[01])(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})[-_](0[1-9]|1[0-2])(?:[^0-9]|$)`),
}

// FileResolver resolves dates from embedded metadata when a reader is set,
// then the file name, then the modification time.
type FileResolver struct {
	// Now bounds accepted dates; files claiming a future date fall through.
	Now func() time.Time
	// Metadata is optional.
	Metadata MetadataReader
}

// NewFileResolver creates a resolver using the wall clock.
func NewFileResolver() *FileResolver {
	return &FileResolver{Now: time.Now}
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(path string) database.Bucket {
	if b, ok := r.fromMetadata(path); ok {
		return b
	}
	if b, ok := r.fromName(filepath.Base(path)); ok {
		return b
	}
	info, err := os.Stat(path)
	if err != nil || info.ModTime().IsZero() {
		return Unknown
	}
	return bucketOf(info.ModTime())
}

func (r *FileResolver) fromMetadata(path string) (database.Bucket, bool) {
	if r.Metadata == nil {
		return database.Bucket{}, false
	}
	fields, err := r.Metadata.ReadMetadata(path)
	if err != nil {
		return database.Bucket{}, false
	}
	t, ok := CaptureTime(fields)
	if !ok || (r.Now != nil && t.After(r.Now())) {
		return database.Bucket{}, false
	}
	return bucketOf(t), true
}

func (r *FileResolver) fromName(name string) (database.Bucket, bool) {
	for _, re := range filenamePatterns {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		if r.Now != nil && t.After(r.Now()) {
			continue
		}
		return bucketOf(t), true
	}
	return database.Bucket{}, false
}

func bucketOf(t time.Time) database.Bucket {
	return database.Bucket{
		Year:  strconv.Itoa(t.Year()),
		Month: fmt.Sprintf("%02d", int(t.Month())),
	}
}

// ParseEdit validates a user-entered bucket and returns it normalized
// (month zero-padded). Invalid input is rejected without side effects.
func ParseEdit(year, month string) (database.Bucket, error) {
	b := database.Bucket{Year: year}
	if year != constants.UnknownYear && !editYear.MatchString(year) {
		return b, ErrInvalidYear
	}

	if month == constants.UnknownMonth {
		b.Month = constants.UnknownMonth
		return b, nil
	}
	if !editMonth.MatchString(month) {
		return b, ErrInvalidMonth
	}
	m, _ := strconv.Atoi(month)
	if m < 1 || m > 12 {
		return b, ErrInvalidMonth
	}
	b.Month = fmt.Sprintf("%02d", m)
	return b, nil
}

// MonthName returns the English month name of a bucket month, or "Unknown".
func MonthName(month string) string {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "Unknown"
	}
	return time.Month(m).String()
}
