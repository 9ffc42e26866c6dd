package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/dates"
	"github.com/spf13/cobra"
)

var dateCmd = &cobra.Command{
	Use:   "date",
	Short: "Show or correct the year/month an asset is filed under",
}

var dateGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Show the stored date bucket of an asset",
	Long: `Show the stored date bucket of an asset. With --exif the embedded
metadata tags (read through exiftool) are listed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runDateGet,
}

var dateSetCmd = &cobra.Command{
	Use:   "set <path> <year> <month>",
	Short: "Move an asset to another date bucket",
	Long: `Move an asset to another year/month bucket. The year is four digits or
"unknown", the month is 1-12 or 00 for unknown. The edit is kept across
rescans.

Examples:
  visagevault date set /photos/scan_001.jpg 1987 6
  visagevault date set /photos/scan_002.jpg unknown 00`,
	Args: cobra.ExactArgs(3),
	RunE: runDateSet,
}

func init() {
	rootCmd.AddCommand(dateCmd)
	dateCmd.AddCommand(dateGetCmd, dateSetCmd)
	dateGetCmd.Flags().Bool("exif", false, "Also list embedded metadata tags")
}

// findAsset looks path up as given, then as an absolute path.
func findAsset(ctx context.Context, a *app.App, path string) (*database.Asset, error) {
	asset, err := a.Catalog.GetAsset(ctx, path)
	if errors.Is(err, database.ErrNotFound) {
		if abs, absErr := filepath.Abs(path); absErr == nil && abs != path {
			asset, err = a.Catalog.GetAsset(ctx, abs)
		}
	}
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%s is not in the catalog; run \"visagevault scan\" first", path)
	}
	return asset, err
}

func runDateGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	asset, err := findAsset(ctx, a, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s %s (%s)\n", asset.Path, dates.MonthName(asset.Month), asset.Year, asset.Month)

	if !mustGetBool(cmd, "exif") {
		return nil
	}
	fields, err := a.AssetMetadata(ctx, asset.Path)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		fmt.Println("No embedded metadata found.")
		return nil
	}
	if t, ok := dates.CaptureTime(fields); ok {
		fmt.Printf("Taken: %s\n", t.Format(time.DateTime))
	}
	keys := slices.Sorted(maps.Keys(fields))
	for _, k := range keys {
		fmt.Printf("  %-28s %v\n", k, fields[k])
	}
	return nil
}

func runDateSet(cmd *cobra.Command, args []string) error {
	bucket, err := dates.ParseEdit(args[1], args[2])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	asset, err := findAsset(ctx, a, args[0])
	if err != nil {
		return err
	}
	if err := a.Catalog.UpdateBucket(ctx, asset.Path, bucket); err != nil {
		return fmt.Errorf("failed to update date: %w", err)
	}
	fmt.Printf("%s moved from %s/%s to %s/%s\n", asset.Path, asset.Year, asset.Month, bucket.Year, bucket.Month)
	return nil
}
