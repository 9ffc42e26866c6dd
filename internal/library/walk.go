package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Walk enumerates every regular file under root whose extension is in exts
// (case-insensitive). Entries that cannot be read are skipped and reported in
// the returned slice of errors. The error result is set only when root itself
// is unusable or ctx is cancelled.
func Walk(ctx context.Context, root string, exts []string) ([]string, []error, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("library root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("library root %s is not a directory", root)
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	var paths []string
	var skipped []error
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			skipped = append(skipped, fmt.Errorf("skip %s: %w", path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("skip %s: %w", path, err))
			return nil
		}
		paths = append(paths, abs)
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}
	return paths, skipped, nil
}
