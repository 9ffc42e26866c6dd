// Package library keeps the catalog in sync with the media files on disk.
package library

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/dates"
	"github.com/rs/zerolog"
)

// Groups is the year -> month -> paths view of a library.
type Groups map[string]map[string][]string

// Add files path under bucket b.
func (g Groups) Add(b database.Bucket, path string) {
	months, ok := g[b.Year]
	if !ok {
		months = make(map[string][]string)
		g[b.Year] = months
	}
	months[b.Month] = append(months[b.Month], path)
}

// Sort orders the paths of every bucket.
func (g Groups) Sort() {
	for _, months := range g {
		for _, paths := range months {
			sort.Strings(paths)
		}
	}
}

// Years returns the years newest first with "unknown" last.
func (g Groups) Years() []string {
	years := make([]string, 0, len(g))
	for y := range g {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool {
		if years[i] == constants.UnknownYear {
			return false
		}
		if years[j] == constants.UnknownYear {
			return true
		}
		return years[i] > years[j]
	})
	return years
}

// GroupBuckets builds Groups from a path -> bucket map.
func GroupBuckets(buckets map[string]database.Bucket) Groups {
	g := make(Groups)
	for path, b := range buckets {
		g.Add(b, path)
	}
	g.Sort()
	return g
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Kind     database.MediaKind `json:"kind"`
	Groups   Groups             `json:"groups"`
	Total    int                `json:"total"`
	Inserted int                `json:"inserted"`
	Deleted  int                `json:"deleted"`
	Errors   []string           `json:"errors,omitempty"`
}

// Progress describes how far a scan has come.
type Progress struct {
	Stage   string `json:"stage"` // "enumerate", "resolve" or "apply"
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// ProgressFunc receives scan progress. It may be nil.
type ProgressFunc func(Progress)

// Reconciler diffs a filesystem scan against the catalog.
type Reconciler struct {
	catalog    database.AssetWriter
	resolver   dates.Resolver
	extensions map[database.MediaKind][]string
	log        zerolog.Logger
}

// NewReconciler creates a reconciler. extensions holds the allow-list per kind.
func NewReconciler(catalog database.AssetWriter, resolver dates.Resolver, extensions map[database.MediaKind][]string, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		catalog:    catalog,
		resolver:   resolver,
		extensions: extensions,
		log:        log,
	}
}

// Scan reconciles the assets of one kind under root with the catalog.
//
// Known paths keep their stored bucket. New paths are resolved and inserted,
// vanished paths are deleted, each as one bulk operation. Store failures during
// the apply step are logged and reported in Result.Errors; the returned
// grouping still reflects what is on disk. Cancellation before the apply step
// leaves the catalog untouched.
func (r *Reconciler) Scan(ctx context.Context, root string, kind database.MediaKind, progress ProgressFunc) (*Result, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}
	report := func(stage string, current, total int) {
		if progress != nil {
			progress(Progress{Stage: stage, Current: current, Total: total})
		}
	}

	known, err := r.catalog.LoadBuckets(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load known %s assets: %w", kind, err)
	}

	report("enumerate", 0, 0)
	found, skipped, err := Walk(ctx, root, r.extensions[kind])
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}

	result := &Result{Kind: kind, Groups: make(Groups), Total: len(found)}
	for _, e := range skipped {
		r.log.Warn().Err(e).Msg("unreadable entry skipped")
		result.Errors = append(result.Errors, e.Error())
	}
	report("enumerate", len(found), len(found))

	var toInsert []database.Asset
	seen := make(map[string]bool, len(found))
	for i, path := range found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen[path] = true

		b, ok := known[path]
		if !ok {
			b = r.resolver.Resolve(path)
			toInsert = append(toInsert, database.Asset{Path: path, Kind: kind, Year: b.Year, Month: b.Month})
		}
		result.Groups.Add(b, path)

		if (i+1)%constants.ScanProgressEvery == 0 {
			report("resolve", i+1, len(found))
		}
	}
	report("resolve", len(found), len(found))

	var toDelete []string
	for path := range known {
		if !seen[path] {
			toDelete = append(toDelete, path)
		}
	}
	sort.Strings(toDelete)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report("apply", 0, len(toInsert)+len(toDelete))
	if len(toInsert) > 0 {
		if err := r.catalog.InsertAssets(ctx, toInsert); err != nil {
			r.log.Error().Err(err).Int("count", len(toInsert)).Str("kind", string(kind)).Msg("bulk insert failed")
			result.Errors = append(result.Errors, fmt.Sprintf("insert %d assets: %v", len(toInsert), err))
		} else {
			result.Inserted = len(toInsert)
		}
	}
	if len(toDelete) > 0 {
		if err := r.catalog.DeleteAssets(ctx, toDelete); err != nil {
			r.log.Error().Err(err).Int("count", len(toDelete)).Str("kind", string(kind)).Msg("bulk delete failed")
			result.Errors = append(result.Errors, fmt.Sprintf("delete %d assets: %v", len(toDelete), err))
		} else {
			result.Deleted = len(toDelete)
		}
	}
	report("apply", len(toInsert)+len(toDelete), len(toInsert)+len(toDelete))

	result.Groups.Sort()
	r.log.Info().
		Str("kind", string(kind)).
		Int("total", result.Total).
		Int("inserted", result.Inserted).
		Int("deleted", result.Deleted).
		Int("errors", len(result.Errors)).
		Msg("scan finished")
	return result, nil
}

// IsCancelled reports whether err came from a cancelled scan.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
