package faces

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/facematch"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the catalog the pipeline needs.
type Store interface {
	ListUnscanned(ctx context.Context) ([]database.Asset, error)
	SaveFaces(ctx context.Context, assetID int64, faces []database.Face) ([]database.Face, error)
	MarkFaceScanned(ctx context.Context, assetID int64, contentHash string) error
}

// EventType identifies a pipeline event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventFace     EventType = "face"
	EventError    EventType = "error"
)

// Event is emitted while the pipeline runs.
type Event struct {
	Type      EventType      `json:"type"`
	Processed int            `json:"processed"`
	Total     int            `json:"total"`
	Percent   int            `json:"percent"`
	AssetPath string         `json:"asset_path,omitempty"`
	Face      *database.Face `json:"face,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Result summarizes one pipeline pass.
type Result struct {
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Faces     int      `json:"faces"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// Pipeline detects and embeds faces for every unscanned asset.
type Pipeline struct {
	store       Store
	analyzer    Analyzer
	concurrency int
	maxImage    int
	log         zerolog.Logger
}

// NewPipeline creates a pipeline. concurrency below 1 means 1.
func NewPipeline(store Store, analyzer Analyzer, concurrency int, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:       store,
		analyzer:    analyzer,
		concurrency: max(1, concurrency),
		maxImage:    constants.MaxImageSize,
		log:         log,
	}
}

// outcome is what happened to one asset.
type outcome int

const (
	outcomeScanned outcome = iota // marked scanned, with or without faces
	outcomeFailed                 // analyzer failed, marked scanned anyway
	outcomeSkipped                // not marked; will be retried next pass
)

// Run processes all unscanned assets. onEvent may be nil; calls to it are
// serialized. Cancellation stops before the next asset; assets already
// processed stay committed.
func (p *Pipeline) Run(ctx context.Context, onEvent func(Event)) (*Result, error) {
	assets, err := p.store.ListUnscanned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unscanned assets: %w", err)
	}

	result := &Result{Total: len(assets)}
	var mu sync.Mutex
	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	mu.Lock()
	emit(Event{Type: EventProgress, Total: len(assets)})
	mu.Unlock()

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, asset := range assets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			faces, out, err := p.processAsset(ctx, asset)

			mu.Lock()
			defer mu.Unlock()

			result.Processed++
			switch out {
			case outcomeFailed:
				result.Failed++
			case outcomeSkipped:
				result.Skipped++
			}
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", asset.Path, err))
				emit(Event{Type: EventError, AssetPath: asset.Path, Error: err.Error()})
			}
			for i := range faces {
				result.Faces++
				emit(Event{Type: EventFace, AssetPath: asset.Path, Face: &faces[i]})
			}
			emit(Event{
				Type:      EventProgress,
				Processed: result.Processed,
				Total:     result.Total,
				Percent:   result.Processed * 100 / result.Total,
				AssetPath: asset.Path,
			})
			return nil
		})
	}
	_ = g.Wait()

	p.log.Info().
		Int("total", result.Total).
		Int("processed", result.Processed).
		Int("faces", result.Faces).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("face scan finished")

	return result, ctx.Err()
}

// processAsset runs detection and embedding for one asset and persists the
// outcome. Images the analyzer rejects are still marked scanned; read, store
// and service availability failures are not.
func (p *Pipeline) processAsset(ctx context.Context, asset database.Asset) ([]database.Face, outcome, error) {
	log := p.log.With().Int64("asset_id", asset.ID).Str("path", asset.Path).Logger()

	data, err := os.ReadFile(asset.Path)
	if err != nil {
		log.Warn().Err(err).Msg("cannot read asset, skipping")
		return nil, outcomeSkipped, fmt.Errorf("read: %w", err)
	}
	hash := contentHash(data)

	faces, analyzeErr := p.analyze(ctx, data)
	if analyzeErr != nil {
		if ctx.Err() != nil {
			return nil, outcomeSkipped, ctx.Err()
		}
		if errors.Is(analyzeErr, ErrUnavailable) {
			log.Warn().Err(analyzeErr).Msg("face service unavailable, skipping")
			return nil, outcomeSkipped, analyzeErr
		}
		log.Error().Err(analyzeErr).Msg("face analysis failed, marking scanned")
		if err := p.store.MarkFaceScanned(ctx, asset.ID, hash); err != nil {
			return nil, outcomeSkipped, fmt.Errorf("mark scanned: %w", err)
		}
		return nil, outcomeFailed, analyzeErr
	}

	var saved []database.Face
	if len(faces) > 0 {
		saved, err = p.store.SaveFaces(ctx, asset.ID, faces)
		if err != nil {
			log.Error().Err(err).Msg("cannot save faces, skipping")
			return nil, outcomeSkipped, fmt.Errorf("save faces: %w", err)
		}
		for i := range saved {
			saved[i].AssetPath = asset.Path
		}
	}

	if err := p.store.MarkFaceScanned(ctx, asset.ID, hash); err != nil {
		log.Error().Err(err).Msg("cannot mark asset scanned")
		return saved, outcomeSkipped, fmt.Errorf("mark scanned: %w", err)
	}
	log.Debug().Int("faces", len(saved)).Msg("asset scanned")
	return saved, outcomeScanned, nil
}

// analyze returns unsaved face records for an encoded image.
func (p *Pipeline) analyze(ctx context.Context, data []byte) ([]database.Face, error) {
	payload, scale := prepareImage(data, p.maxImage)

	boxes, err := p.analyzer.Detect(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	boxes = facematch.DedupeBoxes(boxes, constants.DuplicateDetectionIoU)
	if len(boxes) == 0 {
		return nil, nil
	}

	vectors, err := p.analyzer.Embed(ctx, payload, boxes)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(boxes) {
		return nil, fmt.Errorf("%w: %d boxes, %d embeddings", ErrCountMismatch, len(boxes), len(vectors))
	}

	faces := make([]database.Face, len(boxes))
	for i, b := range boxes {
		faces[i] = database.Face{Embedding: vectors[i], Location: unscaleBox(b, scale)}
	}
	return faces, nil
}
