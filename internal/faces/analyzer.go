// Package faces turns unscanned photos into face records through an external
// detection and embedding service.
package faces

import (
	"context"
	"errors"

	"github.com/kozaktomas/visagevault/internal/database"
)

// ErrCountMismatch is returned when the embedder returns a different number of
// vectors than boxes it was given.
var ErrCountMismatch = errors.New("embedding count does not match face count")

// ErrUnavailable wraps failures of the face service itself (unreachable,
// 5xx, circuit open). Assets that hit it are retried on the next scan.
var ErrUnavailable = errors.New("face service unavailable")

// Analyzer is the face detection and embedding capability.
type Analyzer interface {
	// Detect returns the face boxes found in an encoded image.
	Detect(ctx context.Context, image []byte) ([]database.BBox, error)
	// Embed returns one vector per box, in box order.
	Embed(ctx context.Context, image []byte, boxes []database.BBox) ([][]float32, error)
}
