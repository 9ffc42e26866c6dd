package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/visagevault/internal/config"
)

// Opener opens a catalog for a DATABASE_URL whose scheme it was registered under.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Catalog, error)

var (
	openers   = map[string]Opener{}
	openersMu sync.RWMutex
)

// Register makes a backend available under the given URL schemes.
// Backends call this from init so the database package never imports them.
func Register(open Opener, schemes ...string) {
	openersMu.Lock()
	defer openersMu.Unlock()
	for _, s := range schemes {
		openers[s] = open
	}
}

// Backends returns the registered URL schemes.
func Backends() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scheme returns the scheme part of a database URL.
func Scheme(url string) string {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// Open opens the catalog backend selected by cfg.URL.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Catalog, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	scheme := Scheme(cfg.URL)

	openersMu.RLock()
	open, ok := openers[scheme]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported database scheme %q (available: %s)", scheme, strings.Join(Backends(), ", "))
	}

	catalog, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", scheme, err)
	}
	return catalog, nil
}
