package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/logging"
	"github.com/schollz/progressbar/v3"
)

// loadConfig reads the configuration and initializes logging. A broken
// settings file is reported and defaults are used.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	logging.Init(cfg.Log)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	return cfg
}

// openApp connects to the catalog described by cfg.
func openApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	a, err := app.Open(ctx, cfg, logging.Component("app"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return a, nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// parseIDs converts command arguments to positive ids.
func parseIDs(args []string, what string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid %s id %q", what, arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// lookupIdentity accepts either a numeric id or a name.
func lookupIdentity(ctx context.Context, catalog database.IdentityReader, ref string) (*database.Identity, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		identity, err := catalog.GetIdentity(ctx, id)
		if err == nil || !errors.Is(err, database.ErrNotFound) {
			return identity, err
		}
	}
	identity, err := catalog.FindIdentity(ctx, ref)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("no person matches %q", ref)
	}
	return identity, err
}

// newProgressBar creates a progress bar in the style used by all commands.
func newProgressBar(total int, description, unit string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}
