package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/facematch"
	"github.com/kozaktomas/visagevault/internal/faces"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Detect faces and manage individual face records",
}

var facesScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Detect and embed faces in every photo not yet scanned",
	Long: `Send every photo that has not been face-scanned to the face analysis service
(FACE_API_URL) and store the detected faces with their embeddings.

The process can be stopped and resumed: photos already scanned are skipped.
A photo the service cannot analyze is still marked scanned; a photo that
cannot be read is retried on the next run.

Examples:
  # Scan with the configured concurrency
  visagevault faces scan

  # Analyze three photos in parallel
  visagevault faces scan --concurrency 3`,
	Args: cobra.NoArgs,
	RunE: runFacesScan,
}

var facesDeleteCmd = &cobra.Command{
	Use:   "delete <face-id>...",
	Short: "Mark faces as not a face (hidden from clustering, labels dropped)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFacesSetDeleted(args, true)
	},
}

var facesRestoreCmd = &cobra.Command{
	Use:   "restore <face-id>...",
	Short: "Undo a delete, making faces eligible for clustering again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFacesSetDeleted(args, false)
	},
}

var facesLabelCmd = &cobra.Command{
	Use:   "label <face-id>...",
	Short: "Label faces with a person",
	Long: `Label faces with an existing person (--person, id or name) or with a person
created on demand (--name). A name matching an existing person after
normalization (case, accents, spacing) reuses that person. Labeling a
deleted face restores it.

Examples:
  visagevault faces label 12 14 --name "Ada Lovelace"
  visagevault faces label 15 --person 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFacesLabel,
}

var facesUnlabelCmd = &cobra.Command{
	Use:   "unlabel <face-id>...",
	Short: "Remove labels so faces become eligible for clustering again",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFacesUnlabel,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesScanCmd, facesDeleteCmd, facesRestoreCmd, facesLabelCmd, facesUnlabelCmd)

	facesScanCmd.Flags().Int("concurrency", 0, "Photos analyzed in parallel (defaults to FACE_CONCURRENCY)")
	facesScanCmd.Flags().String("url", "", "Face service URL (defaults to FACE_API_URL)")

	facesLabelCmd.Flags().String("name", "", "Person name; created if no person matches")
	facesLabelCmd.Flags().String("person", "", "Existing person id or name")
}

func runFacesScan(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if n := mustGetInt(cmd, "concurrency"); n > 0 {
		cfg.Faces.Concurrency = n
	}
	if u := mustGetString(cmd, "url"); u != "" {
		cfg.Faces.URL = u
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.Catalog.CountFaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to count faces: %w", err)
	}
	fmt.Printf("Faces in catalog: %d (%d unlabeled, %d labeled, %d deleted)\n",
		counts.Total, counts.Eligible, counts.Labeled, counts.Deleted)

	var bar *progressbar.ProgressBar
	result, err := a.Pipeline.Run(ctx, func(ev faces.Event) {
		if ev.Type != faces.EventProgress || ev.Total == 0 {
			return
		}
		if bar == nil {
			fmt.Printf("Photos to process: %d\n\n", ev.Total)
			bar = newProgressBar(ev.Total, "Detecting faces", "photos")
		}
		_ = bar.Set(ev.Processed)
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if result != nil && result.Total == 0 {
		fmt.Println("All photos already have faces processed!")
		return nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && result != nil {
			fmt.Printf("\nStopped after %d of %d photos; run again to continue\n", result.Processed, result.Total)
			return nil
		}
		return fmt.Errorf("face scan failed: %w", err)
	}

	fmt.Printf("\nProcessed %d photos: %d faces found, %d failed, %d skipped\n",
		result.Processed, result.Faces, result.Failed, result.Skipped)
	for _, e := range result.Errors {
		fmt.Printf("  Error: %s\n", e)
	}
	return nil
}

func runFacesSetDeleted(args []string, deleted bool) error {
	ids, err := parseIDs(args, "face")
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Catalog.SetFacesDeleted(ctx, ids, deleted); err != nil {
		return fmt.Errorf("failed to update faces: %w", err)
	}
	if deleted {
		fmt.Printf("Deleted %d face(s)\n", len(ids))
	} else {
		fmt.Printf("Restored %d face(s)\n", len(ids))
	}
	return nil
}

func runFacesLabel(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	person := mustGetString(cmd, "person")
	if (name == "") == (person == "") {
		return errors.New("exactly one of --name or --person is required")
	}
	ids, err := parseIDs(args, "face")
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	var identity *database.Identity
	if person != "" {
		identity, err = lookupIdentity(ctx, a.Catalog, person)
	} else {
		identity, err = a.Catalog.EnsureIdentity(ctx, facematch.CleanDisplayName(name))
	}
	if err != nil {
		return err
	}
	if err := a.Catalog.AssignIdentity(ctx, ids, identity.ID); err != nil {
		return fmt.Errorf("failed to label faces: %w", err)
	}
	fmt.Printf("Labeled %d face(s) as %s (#%d)\n", len(ids), identity.Name, identity.ID)
	return nil
}

func runFacesUnlabel(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args, "face")
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Catalog.ClearLabels(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove labels: %w", err)
	}
	fmt.Printf("Removed labels from %d face(s)\n", len(ids))
	return nil
}
