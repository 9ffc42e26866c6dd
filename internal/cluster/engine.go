// Package cluster groups unlabeled faces by embedding similarity and drives
// the review workflow that resolves groups into identities.
package cluster

import (
	"context"
	"fmt"

	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/rs/zerolog"
)

// Cluster is one review unit.
type Cluster struct {
	Index int             `json:"index"`
	Faces []database.Face `json:"faces"`
	// Suggestion is the nearest labeled identity, if any is close enough.
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// FaceIDs returns the ids of the cluster's faces.
func (c Cluster) FaceIDs() []int64 {
	ids := make([]int64, len(c.Faces))
	for i, f := range c.Faces {
		ids[i] = f.ID
	}
	return ids
}

// Params controls the clustering run.
type Params struct {
	Eps        float64
	MinSamples int
}

// DefaultParams returns the default radius and minimum cluster size.
func DefaultParams() Params {
	return Params{Eps: constants.DefaultClusterEps, MinSamples: constants.DefaultClusterMinSamples}
}

// Engine finds clusters among eligible faces.
type Engine struct {
	faces     database.FaceReader
	suggester *Suggester
	params    Params
	log       zerolog.Logger
}

// NewEngine creates an engine. suggester may be nil.
func NewEngine(faces database.FaceReader, suggester *Suggester, params Params, log zerolog.Logger) *Engine {
	if params.Eps <= 0 {
		params.Eps = constants.DefaultClusterEps
	}
	if params.MinSamples < 2 {
		params.MinSamples = constants.DefaultClusterMinSamples
	}
	return &Engine{faces: faces, suggester: suggester, params: params, log: log}
}

// Params returns the effective parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Find clusters the current eligible faces. Noise is dropped; fewer than two
// eligible faces yield an empty result without clustering.
func (e *Engine) Find(ctx context.Context) ([]Cluster, error) {
	faces, err := e.faces.ListEligibleFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("load eligible faces: %w", err)
	}
	if len(faces) < 2 {
		e.log.Debug().Int("faces", len(faces)).Msg("too few faces to cluster")
		return []Cluster{}, nil
	}

	points := make([][]float32, len(faces))
	for i, f := range faces {
		points[i] = f.Embedding
	}
	labels := DBSCAN(points, e.params.Eps, e.params.MinSamples)

	var clusters []Cluster
	for i, label := range labels {
		if label == Noise {
			continue
		}
		for len(clusters) <= label {
			clusters = append(clusters, Cluster{Index: len(clusters)})
		}
		clusters[label].Faces = append(clusters[label].Faces, faces[i])
	}
	if clusters == nil {
		clusters = []Cluster{}
	}

	if e.suggester != nil {
		if err := e.suggester.Build(ctx); err != nil {
			e.log.Warn().Err(err).Msg("identity suggestions unavailable")
		} else {
			for i := range clusters {
				clusters[i].Suggestion = e.suggester.Suggest(clusters[i].Faces)
			}
		}
	}

	e.log.Info().
		Int("faces", len(faces)).
		Int("clusters", len(clusters)).
		Float64("eps", e.params.Eps).
		Int("min_samples", e.params.MinSamples).
		Msg("clustering finished")
	return clusters, nil
}
