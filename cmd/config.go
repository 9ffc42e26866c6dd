package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/spf13/cobra"
)

// maxThumbnailSize bounds thumbnail_size to something a grid can display.
const maxThumbnailSize = 1024

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the configuration and edit the settings file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run:   runConfigShow,
}

var configSetDirCmd = &cobra.Command{
	Use:   "set-dir <directory>",
	Short: "Set the library directory in the settings file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSetDir,
}

var configSetThumbSizeCmd = &cobra.Command{
	Use:   "set-thumb-size <pixels>",
	Short: "Set the thumbnail bounding box in the settings file",
	Long: `Set the thumbnail bounding box. Thumbnails already cached keep their old size
until "visagevault thumbs clear" is run.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetThumbSize,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetDirCmd, configSetThumbSizeCmd)
}

// redactURL hides the password of a database URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	dir := cfg.Library.Dir
	if dir == "" {
		dir = "(not set)"
	}
	schedule := cfg.Library.ScanSchedule
	if schedule == "" {
		schedule = "(disabled)"
	}

	fmt.Printf("Settings file:     %s\n", cfg.SettingsPath)
	fmt.Printf("Library:           %s\n", dir)
	fmt.Printf("Photo extensions:  %s\n", strings.Join(cfg.Library.PhotoExtensions, " "))
	fmt.Printf("Video extensions:  %s\n", strings.Join(cfg.Library.VideoExtensions, " "))
	fmt.Printf("Scan schedule:     %s\n", schedule)
	fmt.Printf("Watch library:     %t\n", cfg.Library.Watch)
	fmt.Printf("Database:          %s\n", redactURL(cfg.Database.URL))
	fmt.Printf("Cache:             %s\n", cfg.Cache.Dir)
	fmt.Printf("Thumbnail size:    %d px\n", cfg.Cache.ThumbnailSize)
	fmt.Printf("Face service:      %s\n", cfg.Faces.URL)
	fmt.Printf("Clustering:        eps=%.2f min-samples=%d\n", cfg.Cluster.Eps, cfg.Cluster.MinSamples)
	fmt.Printf("Workers:           %d\n", cfg.Scheduler.Workers)
	fmt.Printf("Web:               %s:%d\n", cfg.Web.Host, cfg.Web.Port)
}

func runConfigSetDir(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("invalid directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cfg := loadConfig()
	if err := config.UpdateSettings(cfg.SettingsPath, func(s *config.Settings) {
		s.PhotoDirectory = dir
	}); err != nil {
		return err
	}
	fmt.Printf("Library directory set to %s\n", dir)
	if os.Getenv("LIBRARY_DIR") != "" {
		fmt.Println("Note: LIBRARY_DIR is set in the environment and takes precedence")
	}
	return nil
}

func runConfigSetThumbSize(cmd *cobra.Command, args []string) error {
	size, err := strconv.Atoi(args[0])
	if err != nil || size <= 0 || size > maxThumbnailSize {
		return fmt.Errorf("thumbnail size must be between 1 and %d pixels", maxThumbnailSize)
	}

	cfg := loadConfig()
	if err := config.UpdateSettings(cfg.SettingsPath, func(s *config.Settings) {
		s.ThumbnailSize = size
	}); err != nil {
		return err
	}
	fmt.Printf("Thumbnail size set to %d px\n", size)
	return nil
}
