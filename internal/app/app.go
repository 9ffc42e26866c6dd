// Package app assembles the catalog, the long scans and the preview machinery
// into one service shared by the CLI and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kozaktomas/visagevault/internal/cluster"
	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/dates"
	"github.com/kozaktomas/visagevault/internal/faces"
	"github.com/kozaktomas/visagevault/internal/jobs"
	"github.com/kozaktomas/visagevault/internal/library"
	"github.com/kozaktomas/visagevault/internal/scheduler"
	"github.com/kozaktomas/visagevault/internal/thumbnail"
	"github.com/rs/zerolog"
)

var (
	// ErrNoLibrary is returned when a library scan is requested without a directory.
	ErrNoLibrary = errors.New("no library directory configured")
	// ErrNoMetadataReader is returned when embedded metadata is requested but
	// no reader is running.
	ErrNoMetadataReader = errors.New("embedded metadata reading is disabled")
)

// Options overrides collaborators, mainly for tests.
type Options struct {
	Analyzer faces.Analyzer
	Resolver dates.Resolver
	Metadata dates.MetadataReader
	Decoders *thumbnail.Options
}

// App owns the long-lived components.
type App struct {
	Config     *config.Config
	Catalog    database.Catalog
	Reconciler *library.Reconciler
	Pipeline   *faces.Pipeline
	Engine     *cluster.Engine
	Thumbs     *thumbnail.Cache
	Pool       *scheduler.Pool
	Jobs       *jobs.Coordinator
	Metadata   dates.MetadataReader // nil when disabled

	log zerolog.Logger

	mu     sync.Mutex
	review *cluster.Review
}

// Open connects to the configured catalog and face service.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	catalog, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	opts := Options{Analyzer: faces.NewClient(cfg.Faces)}
	if cfg.Library.Exif {
		et, err := dates.NewExiftool(cfg.Library.ExiftoolPath)
		if err != nil {
			log.Warn().Err(err).Msg("embedded dates disabled")
		} else {
			opts.Metadata = et
		}
	}
	a, err := New(cfg, catalog, opts, log)
	if err != nil {
		if c, ok := opts.Metadata.(io.Closer); ok {
			c.Close()
		}
		catalog.Close()
		return nil, err
	}
	return a, nil
}

// New builds an App around an open catalog.
func New(cfg *config.Config, catalog database.Catalog, opts Options, log zerolog.Logger) (*App, error) {
	if opts.Resolver == nil {
		opts.Resolver = &dates.FileResolver{Now: time.Now, Metadata: opts.Metadata}
	}
	if opts.Analyzer == nil {
		opts.Analyzer = faces.NewClient(cfg.Faces)
	}

	thumbOpts := thumbnail.Options{}
	if opts.Decoders != nil {
		thumbOpts = *opts.Decoders
	}
	thumbOpts.Dir = cfg.Cache.Dir
	thumbOpts.Size = cfg.Cache.ThumbnailSize
	thumbOpts.VideoExtensions = cfg.Library.VideoExtensions
	if thumbOpts.DecodeVideo == nil {
		thumbOpts.DecodeVideo = thumbnail.FFmpegDecoder(cfg.Cache.FFmpegPath)
	}
	thumbs, err := thumbnail.New(thumbOpts, log.With().Str("component", "thumbnail").Logger())
	if err != nil {
		return nil, err
	}

	extensions := map[database.MediaKind][]string{
		database.KindPhoto: cfg.Library.PhotoExtensions,
		database.KindVideo: cfg.Library.VideoExtensions,
	}
	params := cluster.Params{Eps: cfg.Cluster.Eps, MinSamples: cfg.Cluster.MinSamples}

	return &App{
		Config:     cfg,
		Catalog:    catalog,
		Reconciler: library.NewReconciler(catalog, opts.Resolver, extensions, log.With().Str("component", "library").Logger()),
		Pipeline:   faces.NewPipeline(catalog, opts.Analyzer, cfg.Faces.Concurrency, log.With().Str("component", "faces").Logger()),
		Engine:     cluster.NewEngine(catalog, cluster.NewSuggester(catalog), params, log.With().Str("component", "cluster").Logger()),
		Thumbs:     thumbs,
		Pool:       scheduler.NewPool(cfg.Scheduler.Workers, constants.TaskQueueSize),
		Jobs:       jobs.NewCoordinator(log.With().Str("component", "jobs").Logger()),
		Metadata:   opts.Metadata,
		log:        log,
	}, nil
}

// StartScan launches the long scan of kind in the background.
func (a *App) StartScan(kind jobs.Kind) (*jobs.Job, error) {
	switch kind {
	case jobs.KindPhoto, jobs.KindVideo:
		if a.Config.Library.Dir == "" {
			return nil, ErrNoLibrary
		}
		return a.Jobs.Start(kind, a.runLibrary(database.MediaKind(kind)))
	case jobs.KindFaces:
		return a.Jobs.Start(kind, a.runFaces)
	case jobs.KindCluster:
		return a.Jobs.Start(kind, a.runCluster)
	}
	return nil, fmt.Errorf("unknown scan kind %q", kind)
}

// Rescan starts photo and video scans; kinds already running are left alone.
func (a *App) Rescan(ctx context.Context) {
	for _, kind := range []jobs.Kind{jobs.KindPhoto, jobs.KindVideo} {
		if _, err := a.StartScan(kind); err != nil && !errors.Is(err, jobs.ErrAlreadyRunning) {
			a.log.Warn().Err(err).Str("kind", string(kind)).Msg("rescan not started")
		}
	}
}

func (a *App) runLibrary(kind database.MediaKind) jobs.RunFunc {
	return func(ctx context.Context, job *jobs.Job) (any, error) {
		return a.Reconciler.Scan(ctx, a.Config.Library.Dir, kind, func(p library.Progress) {
			job.Report(p.Current, p.Total, p.Stage)
		})
	}
}

func (a *App) runFaces(ctx context.Context, job *jobs.Job) (any, error) {
	return a.Pipeline.Run(ctx, func(ev faces.Event) {
		switch ev.Type {
		case faces.EventProgress:
			job.Report(ev.Processed, ev.Total, ev.AssetPath)
		default:
			job.Emit(string(ev.Type), ev)
		}
	})
}

func (a *App) runCluster(ctx context.Context, job *jobs.Job) (any, error) {
	clusters, err := a.Engine.Find(ctx)
	if err != nil {
		return nil, err
	}
	for i, c := range clusters {
		job.Emit("cluster", NewClusterInfo(c))
		job.Report(i+1, len(clusters), "")
	}
	a.SetReview(cluster.NewReview(a.Catalog, clusters))
	return map[string]int{"clusters": len(clusters)}, nil
}

// SetReview replaces the active review session, cancelling the previous one.
func (a *App) SetReview(r *cluster.Review) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.review != nil {
		a.review.Cancel()
	}
	a.review = r
}

// Review returns the active review session, or nil.
func (a *App) Review() *cluster.Review {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.review
}

// Shutdown stops the scans, then drains the preview pool, each phase bounded
// by timeout. The catalog stays open; call Close afterwards.
func (a *App) Shutdown(timeout time.Duration) error {
	var errs []error
	if err := a.Jobs.Shutdown(timeout); err != nil {
		a.log.Warn().Err(err).Msg("scans did not stop in time")
		errs = append(errs, err)
	}
	if err := a.Pool.Shutdown(timeout); err != nil {
		a.log.Warn().Err(err).Msg("preview pool did not drain in time")
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// AssetMetadata returns the embedded metadata tags of a catalogued asset.
func (a *App) AssetMetadata(ctx context.Context, path string) (map[string]any, error) {
	if _, err := a.Catalog.GetAsset(ctx, path); err != nil {
		return nil, err
	}
	if a.Metadata == nil {
		return nil, ErrNoMetadataReader
	}
	fields, err := a.Metadata.ReadMetadata(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return dates.ExifFields(fields), nil
}

// Close releases the catalog and the metadata reader.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.Metadata.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.Catalog.Close())
	return errors.Join(errs...)
}
