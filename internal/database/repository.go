package database

import (
	"context"
)

// AssetReader provides read-only access to the asset catalog
type AssetReader interface {
	// LoadBuckets returns the stored bucket of every known asset of a kind, keyed by path
	LoadBuckets(ctx context.Context, kind MediaKind) (map[string]Bucket, error)
	// GetAsset retrieves an asset by path, returns ErrNotFound if absent
	GetAsset(ctx context.Context, path string) (*Asset, error)
	// ListUnscanned returns photo assets not yet processed by the face pipeline, ordered by id
	ListUnscanned(ctx context.Context) ([]Asset, error)
	// CountAssets returns the number of assets of a kind
	CountAssets(ctx context.Context, kind MediaKind) (int, error)
}

// AssetWriter provides write access to the asset catalog
type AssetWriter interface {
	AssetReader

	// InsertAssets stores new assets in one transaction; paths already present are left untouched
	InsertAssets(ctx context.Context, assets []Asset) error

	// DeleteAssets removes assets by path in one transaction, cascading to their faces
	DeleteAssets(ctx context.Context, paths []string) error

	// UpdateBucket changes the stored date bucket of an asset (user edit)
	UpdateBucket(ctx context.Context, path string, bucket Bucket) error

	// MarkFaceScanned flags an asset as processed by the face pipeline.
	// contentHash is recorded when non-empty.
	MarkFaceScanned(ctx context.Context, assetID int64, contentHash string) error
}

// FaceReader provides read-only access to face records
type FaceReader interface {
	// ListEligibleFaces returns faces with no label and no tombstone, ordered by id
	ListEligibleFaces(ctx context.Context) ([]Face, error)
	// GetFace retrieves a face by id, returns ErrNotFound if absent
	GetFace(ctx context.Context, id int64) (*Face, error)
	// FacesByAsset returns every face of an asset, including deleted ones
	FacesByAsset(ctx context.Context, assetID int64) ([]Face, error)
	// FacesByIdentity returns the non-deleted faces labeled with an identity
	FacesByIdentity(ctx context.Context, identityID int64) ([]Face, error)
	// ListLabeledFaces returns every non-deleted labeled face
	ListLabeledFaces(ctx context.Context) ([]Face, error)
	// CountFaces summarizes faces by eligibility state
	CountFaces(ctx context.Context) (FaceCounts, error)
}

// FaceWriter provides write access to face records and labels
type FaceWriter interface {
	FaceReader

	// SaveFaces appends faces for an asset and returns them with ids assigned
	SaveFaces(ctx context.Context, assetID int64, faces []Face) ([]Face, error)

	// SetFacesDeleted sets or clears the soft-delete flag. Deleting also drops labels.
	SetFacesDeleted(ctx context.Context, faceIDs []int64, deleted bool) error

	// AssignIdentity replaces any label of the faces with identityID and clears their tombstones
	AssignIdentity(ctx context.Context, faceIDs []int64, identityID int64) error

	// ClearLabels removes labels from the faces, making non-deleted ones eligible again
	ClearLabels(ctx context.Context, faceIDs []int64) error
}

// IdentityReader provides read-only access to identities
type IdentityReader interface {
	// GetIdentity retrieves an identity by id, returns ErrNotFound if absent
	GetIdentity(ctx context.Context, id int64) (*Identity, error)
	// FindIdentity looks an identity up by name (normalized comparison), returns ErrNotFound if absent
	FindIdentity(ctx context.Context, name string) (*Identity, error)
	// ListIdentities returns all identities with face counts, ordered by name
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// IdentityWriter provides write access to identities
type IdentityWriter interface {
	IdentityReader

	// EnsureIdentity returns the identity with this name, creating it if needed
	EnsureIdentity(ctx context.Context, name string) (*Identity, error)

	// RenameIdentity changes the display name of an identity
	RenameIdentity(ctx context.Context, id int64, name string) error
}

// Catalog is the complete persistent store.
type Catalog interface {
	AssetWriter
	FaceWriter
	IdentityWriter

	// Close releases the underlying connection pool
	Close() error
}
