package cmd

import (
	"fmt"
	"sort"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/dates"
	"github.com/kozaktomas/visagevault/internal/library"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Reconcile the catalog with the media files on disk",
	Long: `Walk the library directory and bring the catalog in line with it.
New files are dated (filename pattern, then modification time) and inserted,
files that disappeared are removed together with their faces. Files already
in the catalog keep their stored date, including manual edits.

Examples:
  # Scan photos and videos in the configured library
  visagevault scan

  # Scan only videos of another directory
  visagevault scan --kind video --dir /mnt/camera`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("kind", "all", "Media kind to scan: photo, video or all")
	scanCmd.Flags().String("dir", "", "Library directory (defaults to LIBRARY_DIR or the settings file)")
	scanCmd.Flags().Bool("quiet", false, "Print only the totals, not the year/month breakdown")
}

func scanKinds(kind string) ([]database.MediaKind, error) {
	if kind == "all" {
		return []database.MediaKind{database.KindPhoto, database.KindVideo}, nil
	}
	k := database.MediaKind(kind)
	if !k.Valid() {
		return nil, fmt.Errorf("invalid --kind %q (expected photo, video or all)", kind)
	}
	return []database.MediaKind{k}, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	kinds, err := scanKinds(mustGetString(cmd, "kind"))
	if err != nil {
		return err
	}
	quiet := mustGetBool(cmd, "quiet")

	cfg := loadConfig()
	if dir := mustGetString(cmd, "dir"); dir != "" {
		cfg.Library.Dir = dir
	}
	if cfg.Library.Dir == "" {
		return fmt.Errorf("%w: pass --dir or run \"visagevault config set-dir\"", app.ErrNoLibrary)
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, kind := range kinds {
		fmt.Printf("Scanning %ss in %s...\n", kind, cfg.Library.Dir)
		bar := &stageBar{}
		result, err := a.Reconciler.Scan(ctx, cfg.Library.Dir, kind, bar.update)
		bar.finish()
		if err != nil {
			if library.IsCancelled(err) {
				fmt.Println("\nScan cancelled, catalog unchanged")
				return nil
			}
			return fmt.Errorf("%s scan failed: %w", kind, err)
		}
		printScanResult(result, quiet)
	}
	return nil
}

// stageBar shows one progress bar per reconciliation stage.
type stageBar struct {
	stage string
	bar   *progressbar.ProgressBar
}

func (s *stageBar) update(p library.Progress) {
	if p.Total == 0 {
		return
	}
	if s.bar == nil || s.stage != p.Stage {
		s.finish()
		s.stage = p.Stage
		s.bar = newProgressBar(p.Total, stageDescription(p.Stage), "files")
	}
	_ = s.bar.Set(p.Current)
}

func (s *stageBar) finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
		fmt.Println()
		s.bar = nil
	}
}

func stageDescription(stage string) string {
	switch stage {
	case "enumerate":
		return "Listing files"
	case "resolve":
		return "Dating new files"
	case "apply":
		return "Updating catalog"
	}
	return stage
}

func printScanResult(result *library.Result, quiet bool) {
	fmt.Printf("Found %d %ss (%d new, %d removed)\n", result.Total, result.Kind, result.Inserted, result.Deleted)
	for _, e := range result.Errors {
		fmt.Printf("  Warning: %s\n", e)
	}
	if quiet {
		return
	}
	for _, year := range result.Groups.Years() {
		months := result.Groups[year]
		keys := make([]string, 0, len(months))
		count := 0
		for m, paths := range months {
			keys = append(keys, m)
			count += len(paths)
		}
		sort.Strings(keys)
		fmt.Printf("  %-8s %6d\n", year, count)
		for _, m := range keys {
			fmt.Printf("    %-12s %6d\n", dates.MonthName(m), len(months[m]))
		}
	}
}
