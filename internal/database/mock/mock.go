// Package mock provides an in-memory database.Catalog for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/facematch"
)

// Catalog is an in-memory implementation of database.Catalog.
type Catalog struct {
	mu         sync.RWMutex
	assets     map[string]*database.Asset
	faces      map[int64]*database.Face
	identities map[int64]*database.Identity
	labels     map[int64]int64 // face id -> identity id
	nextID     int64

	// Error injection
	InsertError   error
	DeleteError   error
	LoadError     error
	SaveError     error
	MarkError     error
	AssignError   error
	IdentityError error

	// Call tracking
	InsertCalls int
	DeleteCalls int
	MarkCalls   int
}

var _ database.Catalog = (*Catalog)(nil)

// NewCatalog creates an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		assets:     make(map[string]*database.Asset),
		faces:      make(map[int64]*database.Face),
		identities: make(map[int64]*database.Identity),
		labels:     make(map[int64]int64),
	}
}

func (m *Catalog) id() int64 {
	m.nextID++
	return m.nextID
}

// LoadBuckets returns the stored bucket of every asset of a kind.
func (m *Catalog) LoadBuckets(ctx context.Context, kind database.MediaKind) (map[string]database.Bucket, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]database.Bucket)
	for p, a := range m.assets {
		if a.Kind == kind {
			out[p] = a.Bucket()
		}
	}
	return out, nil
}

// GetAsset retrieves an asset by path.
func (m *Catalog) GetAsset(ctx context.Context, path string) (*database.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[path]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListUnscanned returns unscanned photos ordered by id.
func (m *Catalog) ListUnscanned(ctx context.Context) ([]database.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Asset
	for _, a := range m.assets {
		if a.Kind == database.KindPhoto && !a.FaceScanned {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CountAssets returns the number of assets of a kind.
func (m *Catalog) CountAssets(ctx context.Context, kind database.MediaKind) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.assets {
		if a.Kind == kind {
			n++
		}
	}
	return n, nil
}

// InsertAssets adds assets, skipping known paths.
func (m *Catalog) InsertAssets(ctx context.Context, assets []database.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertError != nil {
		return m.InsertError
	}
	for _, a := range assets {
		if _, ok := m.assets[a.Path]; ok {
			continue
		}
		a.ID = m.id()
		a.CreatedAt = time.Now()
		m.assets[a.Path] = &a
	}
	return nil
}

// DeleteAssets removes assets together with their faces and labels.
func (m *Catalog) DeleteAssets(ctx context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteError != nil {
		return m.DeleteError
	}
	for _, p := range paths {
		a, ok := m.assets[p]
		if !ok {
			continue
		}
		for id, f := range m.faces {
			if f.AssetID == a.ID {
				delete(m.faces, id)
				delete(m.labels, id)
			}
		}
		delete(m.assets, p)
	}
	return nil
}

// UpdateBucket changes the bucket of an asset.
func (m *Catalog) UpdateBucket(ctx context.Context, path string, bucket database.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[path]
	if !ok {
		return database.ErrNotFound
	}
	a.Year, a.Month = bucket.Year, bucket.Month
	return nil
}

// MarkFaceScanned flags an asset as processed.
func (m *Catalog) MarkFaceScanned(ctx context.Context, assetID int64, contentHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkCalls++
	if m.MarkError != nil {
		return m.MarkError
	}
	for _, a := range m.assets {
		if a.ID == assetID {
			a.FaceScanned = true
			if contentHash != "" {
				a.ContentHash = contentHash
			}
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *Catalog) assetPath(id int64) string {
	for _, a := range m.assets {
		if a.ID == id {
			return a.Path
		}
	}
	return ""
}

// view returns a copy of a face with its label resolved.
func (m *Catalog) view(f *database.Face) database.Face {
	cp := *f
	cp.AssetPath = m.assetPath(f.AssetID)
	cp.IdentityID, cp.IdentityName = nil, ""
	if idID, ok := m.labels[f.ID]; ok {
		id := idID
		cp.IdentityID = &id
		if ident, ok := m.identities[idID]; ok {
			cp.IdentityName = ident.Name
		}
	}
	return cp
}

func (m *Catalog) filterFaces(keep func(f database.Face) bool) []database.Face {
	var out []database.Face
	for _, f := range m.faces {
		v := m.view(f)
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListEligibleFaces returns unlabeled, non-deleted faces.
func (m *Catalog) ListEligibleFaces(ctx context.Context) ([]database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterFaces(func(f database.Face) bool { return f.Eligible() }), nil
}

// GetFace retrieves a face by id.
func (m *Catalog) GetFace(ctx context.Context, id int64) (*database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.faces[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	v := m.view(f)
	return &v, nil
}

// FacesByAsset returns every face of an asset.
func (m *Catalog) FacesByAsset(ctx context.Context, assetID int64) ([]database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterFaces(func(f database.Face) bool { return f.AssetID == assetID }), nil
}

// FacesByIdentity returns the non-deleted faces labeled with an identity.
func (m *Catalog) FacesByIdentity(ctx context.Context, identityID int64) ([]database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterFaces(func(f database.Face) bool {
		return !f.Deleted && f.IdentityID != nil && *f.IdentityID == identityID
	}), nil
}

// ListLabeledFaces returns every non-deleted labeled face.
func (m *Catalog) ListLabeledFaces(ctx context.Context) ([]database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterFaces(func(f database.Face) bool { return !f.Deleted && f.IdentityID != nil }), nil
}

// CountFaces summarizes faces by state.
func (m *Catalog) CountFaces(ctx context.Context) (database.FaceCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c database.FaceCounts
	for id, f := range m.faces {
		c.Total++
		_, labeled := m.labels[id]
		switch {
		case f.Deleted:
			c.Deleted++
		case labeled:
			c.Labeled++
		default:
			c.Eligible++
		}
	}
	return c, nil
}

// SaveFaces appends faces for an asset.
func (m *Catalog) SaveFaces(ctx context.Context, assetID int64, faces []database.Face) ([]database.Face, error) {
	if m.SaveError != nil {
		return nil, m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := make([]database.Face, len(faces))
	for i, f := range faces {
		f.ID = m.id()
		f.AssetID = assetID
		f.Deleted = false
		f.IdentityID, f.IdentityName = nil, ""
		f.CreatedAt = time.Now()
		stored := f
		m.faces[f.ID] = &stored
		saved[i] = f
	}
	return saved, nil
}

// SetFacesDeleted sets the tombstone flag. Deleting drops labels.
func (m *Catalog) SetFacesDeleted(ctx context.Context, faceIDs []int64, deleted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range faceIDs {
		if f, ok := m.faces[id]; ok {
			f.Deleted = deleted
			if deleted {
				delete(m.labels, id)
			}
		}
	}
	return nil
}

// AssignIdentity labels faces and clears their tombstones.
func (m *Catalog) AssignIdentity(ctx context.Context, faceIDs []int64, identityID int64) error {
	if m.AssignError != nil {
		return m.AssignError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identityID]; !ok {
		return database.ErrNotFound
	}
	for _, id := range faceIDs {
		if f, ok := m.faces[id]; ok {
			m.labels[id] = identityID
			f.Deleted = false
		}
	}
	return nil
}

// ClearLabels removes labels.
func (m *Catalog) ClearLabels(ctx context.Context, faceIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range faceIDs {
		delete(m.labels, id)
	}
	return nil
}

func (m *Catalog) identityView(i *database.Identity) database.Identity {
	cp := *i
	cp.FaceCount = 0
	for faceID, idID := range m.labels {
		if idID == i.ID && !m.faces[faceID].Deleted {
			cp.FaceCount++
		}
	}
	return cp
}

// GetIdentity retrieves an identity by id.
func (m *Catalog) GetIdentity(ctx context.Context, id int64) (*database.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.identities[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	v := m.identityView(i)
	return &v, nil
}

func (m *Catalog) findByKey(key string) *database.Identity {
	for _, i := range m.identities {
		if facematch.NormalizePersonName(i.Name) == key {
			return i
		}
	}
	return nil
}

// FindIdentity looks an identity up by normalized name.
func (m *Catalog) FindIdentity(ctx context.Context, name string) (*database.Identity, error) {
	key := facematch.NormalizePersonName(name)
	if key == "" {
		return nil, database.ErrEmptyName
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.findByKey(key)
	if i == nil {
		return nil, database.ErrNotFound
	}
	v := m.identityView(i)
	return &v, nil
}

// ListIdentities returns identities ordered by name.
func (m *Catalog) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Identity, 0, len(m.identities))
	for _, i := range m.identities {
		out = append(out, m.identityView(i))
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name != out[b].Name {
			return out[a].Name < out[b].Name
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// EnsureIdentity returns the identity with this name, creating it if needed.
func (m *Catalog) EnsureIdentity(ctx context.Context, name string) (*database.Identity, error) {
	if m.IdentityError != nil {
		return nil, m.IdentityError
	}
	display := facematch.CleanDisplayName(name)
	key := facematch.NormalizePersonName(display)
	if key == "" {
		return nil, database.ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findByKey(key)
	if i == nil {
		i = &database.Identity{ID: m.id(), Name: display, CreatedAt: time.Now()}
		m.identities[i.ID] = i
	}
	v := m.identityView(i)
	return &v, nil
}

// RenameIdentity changes the display name of an identity.
func (m *Catalog) RenameIdentity(ctx context.Context, id int64, name string) error {
	display := facematch.CleanDisplayName(name)
	if facematch.NormalizePersonName(display) == "" {
		return database.ErrEmptyName
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.identities[id]
	if !ok {
		return database.ErrNotFound
	}
	i.Name = display
	return nil
}

// Close is a no-op.
func (m *Catalog) Close() error { return nil }
