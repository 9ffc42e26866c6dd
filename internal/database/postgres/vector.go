package postgres

import (
	"github.com/kozaktomas/visagevault/internal/database/sqlstore"
	"github.com/pgvector/pgvector-go"
)

// VectorCodec maps embeddings onto the pgvector column type.
type VectorCodec struct{}

// Value implements sqlstore.EmbeddingCodec.
func (VectorCodec) Value(v []float32) any { return pgvector.NewVector(v) }

// Scanner implements sqlstore.EmbeddingCodec.
func (VectorCodec) Scanner() sqlstore.EmbeddingScanner { return &vectorScanner{} }

type vectorScanner struct {
	v pgvector.Vector
}

func (s *vectorScanner) Scan(src any) error {
	return s.v.Scan(src)
}

func (s *vectorScanner) Vector() ([]float32, error) {
	return s.v.Slice(), nil
}
