package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/facematch"
)

const identitySelect = `
	SELECT i.id, i.name, i.created_at,
	       (SELECT COUNT(*) FROM face_labels l JOIN faces f ON f.id = l.face_id
	        WHERE l.identity_id = i.id AND f.is_deleted = FALSE)
	FROM identities i
`

func scanIdentity(row interface{ Scan(...any) error }) (database.Identity, error) {
	var i database.Identity
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.FaceCount)
	return i, err
}

func (s *Store) getIdentity(ctx context.Context, where string, arg any) (*database.Identity, error) {
	i, err := scanIdentity(s.queryRow(ctx, identitySelect+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &i, nil
}

// GetIdentity retrieves an identity by id.
func (s *Store) GetIdentity(ctx context.Context, id int64) (*database.Identity, error) {
	return s.getIdentity(ctx, "WHERE i.id = ?", id)
}

// FindIdentity looks an identity up by normalized name.
func (s *Store) FindIdentity(ctx context.Context, name string) (*database.Identity, error) {
	key := facematch.NormalizePersonName(name)
	if key == "" {
		return nil, database.ErrEmptyName
	}
	return s.getIdentity(ctx, "WHERE i.name_key = ?", key)
}

// ListIdentities returns all identities with face counts, ordered by name.
func (s *Store) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	rows, err := s.query(ctx, identitySelect+"ORDER BY i.name, i.id")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []database.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// EnsureIdentity returns the identity with this name, creating it if needed.
// Names differing only in case, diacritics or spacing resolve to the same identity.
func (s *Store) EnsureIdentity(ctx context.Context, name string) (*database.Identity, error) {
	display := facematch.CleanDisplayName(name)
	key := facematch.NormalizePersonName(display)
	if key == "" {
		return nil, database.ErrEmptyName
	}
	if _, err := s.exec(ctx, s.dialect.insertIgnore("identities", "name", "name_key"), display, key); err != nil {
		return nil, fmt.Errorf("insert identity %q: %w", display, err)
	}
	return s.getIdentity(ctx, "WHERE i.name_key = ?", key)
}

// RenameIdentity changes the display name of an identity.
func (s *Store) RenameIdentity(ctx context.Context, id int64, name string) error {
	display := facematch.CleanDisplayName(name)
	key := facematch.NormalizePersonName(display)
	if key == "" {
		return database.ErrEmptyName
	}
	res, err := s.exec(ctx, "UPDATE identities SET name = ?, name_key = ? WHERE id = ?", display, key, id)
	if err != nil {
		return fmt.Errorf("rename identity %d: %w", id, err)
	}
	return s.requireAffected(ctx, res, "SELECT COUNT(*) FROM identities WHERE id = ?", id)
}
