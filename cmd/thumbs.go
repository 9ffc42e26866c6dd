package cmd

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/logging"
	"github.com/kozaktomas/visagevault/internal/thumbnail"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Manage the thumbnail and face crop cache",
}

var thumbsWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Generate missing thumbnails for the whole catalog",
	Long: `Generate the thumbnail of every cataloged asset (and optionally every face
crop) that is not cached yet. Existing cache files are reused; files that
cannot be decoded are counted as failed.

Examples:
  visagevault thumbs warm
  visagevault thumbs warm --kind video --workers 2
  visagevault thumbs warm --faces`,
	Args: cobra.NoArgs,
	RunE: runThumbsWarm,
}

var thumbsGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the cached thumbnail path of a file, generating it if needed",
	Args:  cobra.ExactArgs(1),
	RunE:  runThumbsGet,
}

var thumbsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached thumbnail and face crop",
	Args:  cobra.NoArgs,
	RunE:  runThumbsClear,
}

func init() {
	rootCmd.AddCommand(thumbsCmd)
	thumbsCmd.AddCommand(thumbsWarmCmd, thumbsGetCmd, thumbsClearCmd)

	thumbsWarmCmd.Flags().String("kind", "all", "Media kind: photo, video or all")
	thumbsWarmCmd.Flags().Bool("faces", false, "Also generate face crops")
	thumbsWarmCmd.Flags().Int("workers", 0, "Parallel generators (defaults to SCHEDULER_WORKERS)")
}

// newThumbnailCache opens the cache without touching the catalog.
func newThumbnailCache(cfg *config.Config) (*thumbnail.Cache, error) {
	return thumbnail.New(thumbnail.Options{
		Dir:             cfg.Cache.Dir,
		Size:            cfg.Cache.ThumbnailSize,
		VideoExtensions: cfg.Library.VideoExtensions,
		DecodeVideo:     thumbnail.FFmpegDecoder(cfg.Cache.FFmpegPath),
	}, logging.Component("thumbnail"))
}

func runThumbsWarm(cmd *cobra.Command, args []string) error {
	kinds, err := scanKinds(mustGetString(cmd, "kind"))
	if err != nil {
		return err
	}
	cfg := loadConfig()
	workers := mustGetInt(cmd, "workers")
	if workers <= 0 {
		workers = cfg.Scheduler.Workers
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var paths []string
	for _, kind := range kinds {
		buckets, err := a.Catalog.LoadBuckets(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to load %s assets: %w", kind, err)
		}
		for p := range buckets {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var faces []database.Face
	if mustGetBool(cmd, "faces") {
		eligible, err := a.Catalog.ListEligibleFaces(ctx)
		if err != nil {
			return fmt.Errorf("failed to load faces: %w", err)
		}
		labeled, err := a.Catalog.ListLabeledFaces(ctx)
		if err != nil {
			return fmt.Errorf("failed to load faces: %w", err)
		}
		faces = append(eligible, labeled...)
	}

	total := len(paths) + len(faces)
	if total == 0 {
		fmt.Println("Catalog is empty; run \"visagevault scan\" first")
		return nil
	}

	bar := newProgressBar(total, "Generating previews", "files")
	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, p := range paths {
		g.Go(func() error {
			if a.Thumbs.GetOrCreate(gctx, p) == "" {
				failed.Add(1)
			}
			_ = bar.Add(1)
			return gctx.Err()
		})
	}
	for _, f := range faces {
		g.Go(func() error {
			if a.Thumbs.FaceCrop(gctx, f) == "" {
				failed.Add(1)
			}
			_ = bar.Add(1)
			return gctx.Err()
		})
	}
	err = g.Wait()
	_ = bar.Finish()
	fmt.Println()

	if err != nil && ctx.Err() != nil {
		fmt.Println("Stopped; cached files are kept")
		return nil
	}
	fmt.Printf("Generated %d new preview(s), %d failed, %d already cached\n",
		a.Thumbs.Generated(), failed.Load(), int64(total)-a.Thumbs.Generated()-failed.Load())
	return nil
}

func runThumbsGet(cmd *cobra.Command, args []string) error {
	cache, err := newThumbnailCache(loadConfig())
	if err != nil {
		return err
	}
	path := cache.GetOrCreate(context.Background(), args[0])
	if path == "" {
		return fmt.Errorf("no thumbnail available for %s", args[0])
	}
	fmt.Println(path)
	return nil
}

func runThumbsClear(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	cache, err := newThumbnailCache(cfg)
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Printf("Cleared thumbnail cache in %s\n", cfg.Cache.Dir)
	return nil
}
