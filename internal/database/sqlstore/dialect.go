package sqlstore

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/kozaktomas/visagevault/internal/database"
)

// ConflictStyle selects how a dialect spells "insert unless the key exists".
type ConflictStyle int

const (
	// OnConflictDoNothing appends ON CONFLICT DO NOTHING (SQLite, PostgreSQL).
	OnConflictDoNothing ConflictStyle = iota
	// InsertIgnore uses INSERT IGNORE INTO (MySQL).
	InsertIgnore
)

// EmbeddingScanner scans an embedding column and exposes the decoded vector.
type EmbeddingScanner interface {
	sql.Scanner
	Vector() ([]float32, error)
}

// EmbeddingCodec converts vectors to and from the driver representation.
type EmbeddingCodec interface {
	Value(v []float32) any
	Scanner() EmbeddingScanner
}

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name string

	// Numbered rewrites ? placeholders as $1, $2, ... when true.
	Numbered bool

	Conflict ConflictStyle

	// Returning reports support for INSERT ... RETURNING id.
	Returning bool

	Embeddings EmbeddingCodec

	// Migrations holds the dialect's *.sql files at its root.
	Migrations fs.FS
}

// Rebind rewrites a query written with ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnore builds an insert statement that skips rows violating a unique key.
func (d Dialect) insertIgnore(table string, cols ...string) string {
	values := placeholders(len(cols))
	switch d.Conflict {
	case InsertIgnore:
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), values)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, strings.Join(cols, ", "), values)
	}
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// int64Args converts ids to query arguments.
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// BlobCodec stores embeddings as little-endian float32 bytes.
type BlobCodec struct{}

// Value implements EmbeddingCodec.
func (BlobCodec) Value(v []float32) any { return database.EncodeEmbedding(v) }

// Scanner implements EmbeddingCodec.
func (BlobCodec) Scanner() EmbeddingScanner { return &blobScanner{} }

type blobScanner struct {
	data []byte
}

func (s *blobScanner) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		s.data = append(s.data[:0], v...)
	case string:
		s.data = []byte(v)
	case nil:
		s.data = nil
	default:
		return fmt.Errorf("unsupported embedding column type %T", src)
	}
	return nil
}

func (s *blobScanner) Vector() ([]float32, error) {
	return database.DecodeEmbedding(s.data)
}
