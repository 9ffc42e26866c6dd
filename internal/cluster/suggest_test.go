package cluster

import (
	"context"
	"testing"

	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/database/mock"
	"github.com/rs/zerolog"
)

func labeled(id, identityID int64, name string, v ...float32) database.Face {
	iid := identityID
	return database.Face{ID: id, Embedding: v, IdentityID: &iid, IdentityName: name}
}

func TestSuggester(t *testing.T) {
	s := NewSuggester(nil)
	s.BuildFromFaces([]database.Face{
		labeled(1, 10, "Alice", 0, 0),
		labeled(2, 10, "Alice", 0.1, 0),
		labeled(3, 20, "Bob", 5, 5),
		{ID: 4, Embedding: []float32{0, 0}}, // unlabeled, ignored
		labeled(5, 30, "Odd", 1, 2, 3),      // wrong dimension, ignored
	})
	if s.Len() != 3 {
		t.Fatalf("expected 3 indexed faces, got %d", s.Len())
	}

	tests := []struct {
		name  string
		query [][]float32
		want  int64
	}{
		{"near alice", [][]float32{{0.05, 0.05}, {0.1, 0.05}}, 10},
		{"near bob", [][]float32{{5.1, 5}}, 20},
		{"nobody close", [][]float32{{50, 50}}, 0},
		{"dimension mismatch", [][]float32{{0, 0, 0}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faces := make([]database.Face, len(tt.query))
			for i, q := range tt.query {
				faces[i] = database.Face{Embedding: q}
			}
			got := s.Suggest(faces)
			if tt.want == 0 {
				if got != nil {
					t.Errorf("expected no suggestion, got %+v", got)
				}
				return
			}
			if got == nil || got.IdentityID != tt.want {
				t.Errorf("Suggest = %+v, want identity %d", got, tt.want)
			}
		})
	}
}

func TestSuggester_Empty(t *testing.T) {
	s := NewSuggester(nil)
	s.BuildFromFaces(nil)
	if got := s.Suggest([]database.Face{{Embedding: []float32{0, 0}}}); got != nil {
		t.Errorf("expected nil suggestion from empty index, got %+v", got)
	}
}

func TestEngine_AttachesSuggestions(t *testing.T) {
	c := mock.NewCatalog()
	ctx := context.Background()
	faces := seedFaces(t, c,
		[]float32{0, 0}, []float32{0.1, 0}, // will be labeled Alice
		[]float32{0.05, 0}, []float32{0.02, 0.02}, // eligible, near Alice
	)
	alice, _ := c.EnsureIdentity(ctx, "Alice")
	if err := c.AssignIdentity(ctx, []int64{faces[0].ID, faces[1].ID}, alice.ID); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(c, NewSuggester(c), Params{Eps: 0.5, MinSamples: 2}, zerolog.Nop())
	clusters, err := e.Find(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if s := clusters[0].Suggestion; s == nil || s.IdentityID != alice.ID || s.Name != "Alice" {
		t.Errorf("expected Alice suggestion, got %+v", s)
	}
}
