package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
)

const assetColumns = `id, path, kind, COALESCE(content_hash, ''), year, month, face_scanned, created_at`

func scanAsset(row interface{ Scan(...any) error }) (database.Asset, error) {
	var a database.Asset
	var kind string
	err := row.Scan(&a.ID, &a.Path, &kind, &a.ContentHash, &a.Year, &a.Month, &a.FaceScanned, &a.CreatedAt)
	a.Kind = database.MediaKind(kind)
	return a, err
}

// LoadBuckets returns the stored bucket of every known asset of a kind, keyed by path.
func (s *Store) LoadBuckets(ctx context.Context, kind database.MediaKind) (map[string]database.Bucket, error) {
	rows, err := s.query(ctx, "SELECT path, year, month FROM assets WHERE kind = ?", string(kind))
	if err != nil {
		return nil, fmt.Errorf("query buckets: %w", err)
	}
	defer rows.Close()

	buckets := make(map[string]database.Bucket)
	for rows.Next() {
		var path string
		var b database.Bucket
		if err := rows.Scan(&path, &b.Year, &b.Month); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets[path] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return buckets, nil
}

// GetAsset retrieves an asset by path.
func (s *Store) GetAsset(ctx context.Context, path string) (*database.Asset, error) {
	a, err := scanAsset(s.queryRow(ctx, "SELECT "+assetColumns+" FROM assets WHERE path = ?", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &a, nil
}

// ListUnscanned returns photo assets not yet processed by the face pipeline.
func (s *Store) ListUnscanned(ctx context.Context) ([]database.Asset, error) {
	rows, err := s.query(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE kind = ? AND face_scanned = FALSE ORDER BY id",
		string(database.KindPhoto),
	)
	if err != nil {
		return nil, fmt.Errorf("query unscanned assets: %w", err)
	}
	defer rows.Close()

	var assets []database.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// CountAssets returns the number of assets of a kind.
func (s *Store) CountAssets(ctx context.Context, kind database.MediaKind) (int, error) {
	var count int
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM assets WHERE kind = ?", string(kind)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return count, nil
}

// InsertAssets stores new assets in a single transaction. Paths already in the
// catalog keep their stored row.
func (s *Store) InsertAssets(ctx context.Context, assets []database.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	return s.withTx(ctx, func(t *txn) error {
		stmt, err := t.prepare(ctx, s.dialect.insertIgnore("assets", "path", "kind", "year", "month"))
		if err != nil {
			return fmt.Errorf("prepare asset insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range assets {
			if _, err := stmt.ExecContext(ctx, a.Path, string(a.Kind), a.Year, a.Month); err != nil {
				return fmt.Errorf("insert asset %s: %w", a.Path, err)
			}
		}
		return nil
	})
}

// DeleteAssets removes assets by path in a single transaction. Faces and labels
// of the removed assets go with them.
func (s *Store) DeleteAssets(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.withTx(ctx, func(t *txn) error {
		for start := 0; start < len(paths); start += constants.DeleteChunkSize {
			end := min(start+constants.DeleteChunkSize, len(paths))
			chunk := paths[start:end]

			args := make([]any, len(chunk))
			for i, p := range chunk {
				args[i] = p
			}
			query := "DELETE FROM assets WHERE path IN (" + placeholders(len(chunk)) + ")"
			if _, err := t.exec(ctx, query, args...); err != nil {
				return fmt.Errorf("delete assets: %w", err)
			}
		}
		return nil
	})
}

// UpdateBucket changes the stored date bucket of an asset.
func (s *Store) UpdateBucket(ctx context.Context, path string, bucket database.Bucket) error {
	res, err := s.exec(ctx, "UPDATE assets SET year = ?, month = ? WHERE path = ?", bucket.Year, bucket.Month, path)
	if err != nil {
		return fmt.Errorf("update bucket: %w", err)
	}
	return s.requireAffected(ctx, res, "SELECT COUNT(*) FROM assets WHERE path = ?", path)
}

// MarkFaceScanned flags an asset as processed by the face pipeline.
func (s *Store) MarkFaceScanned(ctx context.Context, assetID int64, contentHash string) error {
	res, err := s.exec(ctx,
		"UPDATE assets SET face_scanned = TRUE, content_hash = COALESCE(NULLIF(?, ''), content_hash) WHERE id = ?",
		contentHash, assetID,
	)
	if err != nil {
		return fmt.Errorf("mark asset %d scanned: %w", assetID, err)
	}
	return s.requireAffected(ctx, res, "SELECT COUNT(*) FROM assets WHERE id = ?", assetID)
}

// requireAffected returns ErrNotFound when an update touched no row and the
// existence query confirms the row is absent. MySQL reports zero affected rows
// for updates that leave values unchanged, hence the second query.
func (s *Store) requireAffected(ctx context.Context, res sql.Result, existsQuery string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}
	var count int
	if err := s.queryRow(ctx, existsQuery, args...).Scan(&count); err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if count == 0 {
		return database.ErrNotFound
	}
	return nil
}
