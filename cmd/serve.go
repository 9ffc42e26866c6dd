package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/jobs"
	"github.com/kozaktomas/visagevault/internal/library"
	"github.com/kozaktomas/visagevault/internal/logging"
	"github.com/kozaktomas/visagevault/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the VisageVault HTTP API. Scans run in the background (one per kind)
and report progress over server-sent events; thumbnails and face crops are
generated on demand for what clients have on screen.

With SCAN_SCHEDULE set the library is rescanned on that cron schedule, and
with LIBRARY_WATCH=true it is rescanned shortly after files change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Library.Watch && cfg.Library.Dir != "" {
		watcher := library.NewWatcher(cfg.Library.Dir, constants.WatchDebounce, a.Rescan, logging.Component("watch"))
		go func() {
			if err := watcher.Run(ctx); err != nil {
				fmt.Printf("Warning: library watch stopped: %v\n", err)
			}
		}()
	}

	if cfg.Library.ScanSchedule != "" {
		cron, err := jobs.NewCron(logging.Component("cron"))
		if err != nil {
			return err
		}
		if err := cron.Add("library-rescan", cfg.Library.ScanSchedule, a.Rescan); err != nil {
			return fmt.Errorf("invalid SCAN_SCHEDULE: %w", err)
		}
		cron.Start()
		defer func() { _ = cron.Stop() }()
	}

	server := web.NewServer(a, logging.Component("web"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Starting VisageVault API on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	timeout := cfg.Scheduler.ShutdownTimeout
	if timeout <= 0 {
		timeout = constants.DefaultShutdownTimeout
	}

	// Stop scans and drain the preview pool before closing the listener.
	if err := a.Shutdown(timeout); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
	}

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		return nil
	}
}
