package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
)

// Suggestion names the identity nearest to a cluster.
type Suggestion struct {
	IdentityID int64   `json:"identity_id"`
	Name       string  `json:"name"`
	Distance   float64 `json:"distance"`
	Votes      int     `json:"votes"`
}

// Suggester indexes labeled faces in an HNSW graph and proposes the identity
// closest to a cluster centroid.
type Suggester struct {
	faces       database.FaceReader
	maxDistance float64
	k           int

	mu       sync.RWMutex
	graph    *hnsw.Graph[int64]
	idToFace map[int64]database.Face
	dims     int
}

// NewSuggester creates a suggester reading labeled faces from faces.
func NewSuggester(faces database.FaceReader) *Suggester {
	return &Suggester{
		faces:       faces,
		maxDistance: constants.SuggestionMaxDistance,
		k:           constants.SuggestionNeighbors,
		idToFace:    make(map[int64]database.Face),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build rebuilds the index from the currently labeled faces.
func (s *Suggester) Build(ctx context.Context) error {
	labeled, err := s.faces.ListLabeledFaces(ctx)
	if err != nil {
		return fmt.Errorf("load labeled faces: %w", err)
	}
	s.BuildFromFaces(labeled)
	return nil
}

// BuildFromFaces rebuilds the index from faces. Faces without a label or with
// an embedding of a different dimension than the first are ignored.
func (s *Suggester) BuildFromFaces(faces []database.Face) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph = nil
	s.idToFace = make(map[int64]database.Face, len(faces))
	s.dims = 0

	g := newGraph()
	for _, f := range faces {
		if f.IdentityID == nil || len(f.Embedding) == 0 {
			continue
		}
		if s.dims == 0 {
			s.dims = len(f.Embedding)
		}
		if len(f.Embedding) != s.dims {
			continue
		}
		g.Add(hnsw.MakeNode(f.ID, f.Embedding))
		s.idToFace[f.ID] = f
	}
	if len(s.idToFace) > 0 {
		s.graph = g
	}
}

// Len returns the number of indexed faces.
func (s *Suggester) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idToFace)
}

// Suggest returns the identity with the most votes among the labeled faces
// nearest to the centroid of faces, or nil when none is within the distance
// threshold. Ties go to the smaller distance.
func (s *Suggester) Suggest(faces []database.Face) *Suggestion {
	vectors := make([][]float32, 0, len(faces))
	for _, f := range faces {
		vectors = append(vectors, f.Embedding)
	}
	centroid := Centroid(vectors)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil || len(centroid) != s.dims {
		return nil
	}

	type tally struct {
		votes int
		best  float64
		name  string
	}
	byIdentity := map[int64]*tally{}
	for _, n := range s.graph.Search(centroid, s.k) {
		face, ok := s.idToFace[n.Key]
		if !ok {
			continue
		}
		d := euclidean(centroid, n.Value)
		if d > s.maxDistance {
			continue
		}
		t, ok := byIdentity[*face.IdentityID]
		if !ok {
			t = &tally{best: d, name: face.IdentityName}
			byIdentity[*face.IdentityID] = t
		}
		t.votes++
		t.best = min(t.best, d)
	}
	if len(byIdentity) == 0 {
		return nil
	}

	candidates := make([]Suggestion, 0, len(byIdentity))
	for id, t := range byIdentity {
		candidates = append(candidates, Suggestion{IdentityID: id, Name: t.name, Distance: t.best, Votes: t.votes})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Votes != candidates[j].Votes {
			return candidates[i].Votes > candidates[j].Votes
		}
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].IdentityID < candidates[j].IdentityID
	})
	return &candidates[0]
}
