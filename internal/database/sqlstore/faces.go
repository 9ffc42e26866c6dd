package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/visagevault/internal/database"
)

// faceSelect joins each face with its asset path and optional label.
const faceSelect = `
	SELECT f.id, f.asset_id, a.path, f.embedding, f.location, f.is_deleted, f.created_at,
	       l.identity_id, i.name
	FROM faces f
	JOIN assets a ON a.id = f.asset_id
	LEFT JOIN face_labels l ON l.face_id = f.id
	LEFT JOIN identities i ON i.id = l.identity_id
`

func (s *Store) scanFace(row interface{ Scan(...any) error }) (database.Face, error) {
	var f database.Face
	var location string
	var identityID sql.NullInt64
	var identityName sql.NullString
	emb := s.dialect.Embeddings.Scanner()

	err := row.Scan(&f.ID, &f.AssetID, &f.AssetPath, emb, &location, &f.Deleted, &f.CreatedAt, &identityID, &identityName)
	if err != nil {
		return f, err
	}

	if f.Embedding, err = emb.Vector(); err != nil {
		return f, fmt.Errorf("decode embedding of face %d: %w", f.ID, err)
	}
	if f.Location, err = database.ParseLocation(location); err != nil {
		return f, fmt.Errorf("decode location of face %d: %w", f.ID, err)
	}
	if identityID.Valid {
		id := identityID.Int64
		f.IdentityID = &id
		f.IdentityName = identityName.String
	}
	return f, nil
}

func (s *Store) queryFaces(ctx context.Context, where string, args ...any) ([]database.Face, error) {
	rows, err := s.query(ctx, faceSelect+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var faces []database.Face
	for rows.Next() {
		f, err := s.scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// ListEligibleFaces returns faces with no label and no tombstone, ordered by id.
func (s *Store) ListEligibleFaces(ctx context.Context) ([]database.Face, error) {
	return s.queryFaces(ctx, "WHERE f.is_deleted = FALSE AND l.face_id IS NULL ORDER BY f.id")
}

// GetFace retrieves a face by id.
func (s *Store) GetFace(ctx context.Context, id int64) (*database.Face, error) {
	f, err := s.scanFace(s.queryRow(ctx, faceSelect+"WHERE f.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face %d: %w", id, err)
	}
	return &f, nil
}

// FacesByAsset returns every face of an asset, including deleted ones.
func (s *Store) FacesByAsset(ctx context.Context, assetID int64) ([]database.Face, error) {
	return s.queryFaces(ctx, "WHERE f.asset_id = ? ORDER BY f.id", assetID)
}

// FacesByIdentity returns the non-deleted faces labeled with an identity.
func (s *Store) FacesByIdentity(ctx context.Context, identityID int64) ([]database.Face, error) {
	return s.queryFaces(ctx, "WHERE l.identity_id = ? AND f.is_deleted = FALSE ORDER BY f.id", identityID)
}

// ListLabeledFaces returns every non-deleted labeled face.
func (s *Store) ListLabeledFaces(ctx context.Context) ([]database.Face, error) {
	return s.queryFaces(ctx, "WHERE l.face_id IS NOT NULL AND f.is_deleted = FALSE ORDER BY f.id")
}

// CountFaces summarizes faces by eligibility state.
func (s *Store) CountFaces(ctx context.Context) (database.FaceCounts, error) {
	var c database.FaceCounts
	err := s.queryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN f.is_deleted THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN NOT f.is_deleted AND l.face_id IS NOT NULL THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN NOT f.is_deleted AND l.face_id IS NULL THEN 1 ELSE 0 END), 0)
		FROM faces f
		LEFT JOIN (SELECT DISTINCT face_id FROM face_labels) l ON l.face_id = f.id
	`).Scan(&c.Total, &c.Deleted, &c.Labeled, &c.Eligible)
	if err != nil {
		return c, fmt.Errorf("count faces: %w", err)
	}
	return c, nil
}

// SaveFaces appends faces for an asset in one transaction and returns them with ids assigned.
func (s *Store) SaveFaces(ctx context.Context, assetID int64, faces []database.Face) ([]database.Face, error) {
	if len(faces) == 0 {
		return nil, nil
	}
	saved := make([]database.Face, len(faces))
	err := s.withTx(ctx, func(t *txn) error {
		const insert = "INSERT INTO faces (asset_id, embedding, location, is_deleted) VALUES (?, ?, ?, FALSE)"
		for i, f := range faces {
			f.AssetID = assetID
			f.Deleted = false
			emb := s.dialect.Embeddings.Value(f.Embedding)
			loc := database.EncodeLocation(f.Location)

			if s.dialect.Returning {
				if err := t.queryRow(ctx, insert+" RETURNING id", assetID, emb, loc).Scan(&f.ID); err != nil {
					return fmt.Errorf("insert face %d: %w", i, err)
				}
			} else {
				res, err := t.exec(ctx, insert, assetID, emb, loc)
				if err != nil {
					return fmt.Errorf("insert face %d: %w", i, err)
				}
				if f.ID, err = res.LastInsertId(); err != nil {
					return fmt.Errorf("face %d id: %w", i, err)
				}
			}
			saved[i] = f
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SetFacesDeleted sets or clears the soft-delete flag. Deleting also drops labels.
func (s *Store) SetFacesDeleted(ctx context.Context, faceIDs []int64, deleted bool) error {
	if len(faceIDs) == 0 {
		return nil
	}
	in := "(" + placeholders(len(faceIDs)) + ")"
	return s.withTx(ctx, func(t *txn) error {
		args := append([]any{deleted}, int64Args(faceIDs)...)
		if _, err := t.exec(ctx, "UPDATE faces SET is_deleted = ? WHERE id IN "+in, args...); err != nil {
			return fmt.Errorf("update face tombstones: %w", err)
		}
		if deleted {
			if _, err := t.exec(ctx, "DELETE FROM face_labels WHERE face_id IN "+in, int64Args(faceIDs)...); err != nil {
				return fmt.Errorf("drop labels of deleted faces: %w", err)
			}
		}
		return nil
	})
}

// AssignIdentity replaces any label of the faces with identityID and clears their tombstones.
func (s *Store) AssignIdentity(ctx context.Context, faceIDs []int64, identityID int64) error {
	if len(faceIDs) == 0 {
		return nil
	}
	in := "(" + placeholders(len(faceIDs)) + ")"
	return s.withTx(ctx, func(t *txn) error {
		if _, err := t.exec(ctx, "DELETE FROM face_labels WHERE face_id IN "+in, int64Args(faceIDs)...); err != nil {
			return fmt.Errorf("clear previous labels: %w", err)
		}
		stmt, err := t.prepare(ctx, "INSERT INTO face_labels (face_id, identity_id) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("prepare label insert: %w", err)
		}
		defer stmt.Close()
		for _, id := range faceIDs {
			if _, err := stmt.ExecContext(ctx, id, identityID); err != nil {
				return fmt.Errorf("label face %d: %w", id, err)
			}
		}
		if _, err := t.exec(ctx, "UPDATE faces SET is_deleted = FALSE WHERE id IN "+in, int64Args(faceIDs)...); err != nil {
			return fmt.Errorf("restore labeled faces: %w", err)
		}
		return nil
	})
}

// ClearLabels removes labels from the faces.
func (s *Store) ClearLabels(ctx context.Context, faceIDs []int64) error {
	if len(faceIDs) == 0 {
		return nil
	}
	query := "DELETE FROM face_labels WHERE face_id IN (" + placeholders(len(faceIDs)) + ")"
	if _, err := s.exec(ctx, query, int64Args(faceIDs)...); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	return nil
}
