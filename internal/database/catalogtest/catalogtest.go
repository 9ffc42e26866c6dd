// Package catalogtest holds behavioral tests shared by every database.Catalog
// backend. Backend packages call Run from their own tests.
package catalogtest

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/visagevault/internal/database"
)

// Opener returns a fresh, empty catalog. The test closes it.
type Opener func(t *testing.T) database.Catalog

// Run exercises the full Catalog contract against catalogs produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, c database.Catalog)
	}{
		{"AssetsInsertLoadDelete", testAssets},
		{"InsertKeepsExistingBucket", testInsertKeepsExisting},
		{"UpdateBucket", testUpdateBucket},
		{"FaceScan", testFaceScan},
		{"Labels", testLabels},
		{"DeleteFaces", testDeleteFaces},
		{"Identities", testIdentities},
		{"CascadeDelete", testCascadeDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := open(t)
			t.Cleanup(func() { _ = c.Close() })
			tt.fn(t, c)
		})
	}
}

func seedPhoto(t *testing.T, c database.Catalog, path string) *database.Asset {
	t.Helper()
	ctx := context.Background()
	err := c.InsertAssets(ctx, []database.Asset{{Path: path, Kind: database.KindPhoto, Year: "2021", Month: "06"}})
	if err != nil {
		t.Fatalf("InsertAssets: %v", err)
	}
	a, err := c.GetAsset(ctx, path)
	if err != nil {
		t.Fatalf("GetAsset(%s): %v", path, err)
	}
	return a
}

func seedFaces(t *testing.T, c database.Catalog, assetID int64, n int) []database.Face {
	t.Helper()
	faces := make([]database.Face, n)
	for i := range faces {
		faces[i] = database.Face{
			Embedding: []float32{float32(i), 0.5, -1},
			Location:  database.BBox{Top: 10 * i, Right: 10*i + 8, Bottom: 10*i + 8, Left: 10 * i},
		}
	}
	saved, err := c.SaveFaces(context.Background(), assetID, faces)
	if err != nil {
		t.Fatalf("SaveFaces: %v", err)
	}
	return saved
}

func testAssets(t *testing.T, c database.Catalog) {
	ctx := context.Background()
	assets := []database.Asset{
		{Path: "/lib/a.jpg", Kind: database.KindPhoto, Year: "2020", Month: "01"},
		{Path: "/lib/b.jpg", Kind: database.KindPhoto, Year: "unknown", Month: "00"},
		{Path: "/lib/c.mp4", Kind: database.KindVideo, Year: "2019", Month: "12"},
	}
	if err := c.InsertAssets(ctx, assets); err != nil {
		t.Fatalf("InsertAssets: %v", err)
	}

	photos, err := c.LoadBuckets(ctx, database.KindPhoto)
	if err != nil {
		t.Fatalf("LoadBuckets: %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("expected 2 photo buckets, got %d", len(photos))
	}
	if got := photos["/lib/b.jpg"]; got.Year != "unknown" || got.Month != "00" {
		t.Errorf("expected unknown bucket, got %+v", got)
	}

	n, err := c.CountAssets(ctx, database.KindVideo)
	if err != nil || n != 1 {
		t.Errorf("CountAssets(video) = %d, %v; want 1", n, err)
	}

	if err := c.DeleteAssets(ctx, []string{"/lib/a.jpg", "/lib/missing.jpg"}); err != nil {
		t.Fatalf("DeleteAssets: %v", err)
	}
	if _, err := c.GetAsset(ctx, "/lib/a.jpg"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	n, _ = c.CountAssets(ctx, database.KindPhoto)
	if n != 1 {
		t.Errorf("expected 1 photo left, got %d", n)
	}
}

func testInsertKeepsExisting(t *testing.T, c database.Catalog) {
	ctx := context.Background()
	seedPhoto(t, c, "/lib/x.jpg")

	err := c.InsertAssets(ctx, []database.Asset{{Path: "/lib/x.jpg", Kind: database.KindPhoto, Year: "1999", Month: "01"}})
	if err != nil {
		t.Fatalf("InsertAssets duplicate: %v", err)
	}
	a, _ := c.GetAsset(ctx, "/lib/x.jpg")
	if a.Year != "2021" || a.Month != "06" {
		t.Errorf("stored bucket changed to %s/%s", a.Year, a.Month)
	}
}

func testUpdateBucket(t *testing.T, c database.Catalog) {
	ctx := context.Background()
	seedPhoto(t, c, "/lib/y.jpg")

	if err := c.UpdateBucket(ctx, "/lib/y.jpg", database.Bucket{Year: "2005", Month: "03"}); err != nil {
		t.Fatalf("UpdateBucket: %v", err)
	}
	a, _ := c.GetAsset(ctx, "/lib/y.jpg")
	if a.Year != "2005" || a.Month != "03" {
		t.Errorf("expected 2005/03, got %s/%s", a.Year, a.Month)
	}
	// Same values again must not be reported as missing.
	if err := c.UpdateBucket(ctx, "/lib/y.jpg", database.Bucket{Year: "2005", Month: "03"}); err != nil {
		t.Errorf("idempotent UpdateBucket: %v", err)
	}
	if err := c.UpdateBucket(ctx, "/lib/nope.jpg", database.Bucket{Year: "2005", Month: "03"}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testFaceScan(t *testing.T, c database.Catalog) {
	ctx := context.Background()
	a := seedPhoto(t, c, "/lib/f.jpg")
	seedPhoto(t, c, "/lib/g.jpg")

	unscanned, err := c.ListUnscanned(ctx)
	if err != nil || len(unscanned) != 2 {
		t.Fatalf("ListUnscanned = %d, %v; want 2", len(unscanned), err)
	}

	saved := seedFaces(t, c, a.ID, 2)
	if saved[0].ID == 0 || saved[0].ID == saved[1].ID {
		t.Fatalf("expected distinct face ids, got %d and %d", saved[0].ID, saved[1].ID)
	}
	if err := c.MarkFaceScanned(ctx, a.ID, "abcdef0123456789"); err != nil {
		t.Fatalf("MarkFaceScanned: %v", err)
	}

	unscanned, _ = c.ListUnscanned(ctx)
	if len(unscanned) != 1 || unscanned[0].Path != "/lib/g.jpg" {
		t.Errorf("expected only g.jpg unscanned, got %+v", unscanned)
	}
	got, _ := c.GetAsset(ctx, "/lib/f.jpg")
	if !got.FaceScanned || got.ContentHash != "abcdef0123456789" {
		t.Errorf("unexpected scanned asset %+v", got)
	}

	face, err := c.GetFace(ctx, saved[1].ID)
	if err != nil {
		t.Fatalf("GetFace: %v", err)
	}
	if face.AssetPath != "/lib/f.jpg" || face.Location != saved[1].Location {
		t.Errorf("unexpected face %+v", face)
	}
	if len(face.Embedding) != 3 || face.Embedding[0] != 1 || face.Embedding[2] != -1 {
		t.Errorf("embedding did not round trip: %v", face.Embedding)
	}

	eligible, _ := c.ListEligibleFaces(ctx)
	if len(eligible) != 2 {
		t.Errorf("expected 2 eligible faces, got %d", len(eligible))
	}
	if _, err := c.GetFace(ctx, 999999); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testLabels(t *testing.T, c database.Catalog) {
	ctx := context.Background()
	a := seedPhoto(t, c, "/lib/l.jpg")
	faces := seedFaces(t, c, a.ID, 3)

	alice, err := c.EnsureIdentity(ctx, "Alice")
	if err != nil {
		t.Fatalf("EnsureIdentity: %v", err)
	}
	bob, _ := c.EnsureIdentity(ctx, "Bob")

	if err := c.AssignIdentity(ctx, []int64{faces[0].ID, faces[1].ID}, alice.ID); err != nil {
		t.Fatalf("AssignIdentity: %v", err)
	}
	// Relabel replaces the previous identity.
	if err := c.AssignIdentity(ctx, []int64{faces[1].ID}, bob.ID); err != nil {
		t.Fatalf("AssignIdentity relabel: %v", err)
	}

	f1, _ := c.GetFace(ctx, faces[1].ID)
	if f1.IdentityID == nil || *f1.IdentityID != bob.ID || f1.IdentityName != "Bob" {
		t.Errorf("expected face labeled Bob, got %+v", f1)
	}

	byAlice, _ := c.FacesByIdentity(ctx, alice.ID)
	if len(byAlice) != 1 || byAlice[0].ID != faces[0].ID {
		t.Errorf("expected one Alice face, got %+v", byAlice)
	}
	labeled, _ := c.ListLabeledFaces(ctx)
	if len(labeled) != 2 {
		t.Errorf("expected 2 labeled faces, got %d", len(labeled))
	}
	eligible, _ := c.ListEligibleFaces(ctx)
	if len(eligible) != 1 || eligible[0].ID != faces[2].ID {
		t.Errorf("expected only the unlabeled face eligible, got %+v", eligible)
	}

	if err := c.ClearLabels(ctx, []int64{faces[0].ID}); err != nil {
		t.Fatalf("ClearLabels: %v", err)
	}
	counts, err := c.CountFaces(ctx)
	if err != nil {
		t.Fatalf("CountFaces: %v", err)
	}
	want := database.FaceCounts{Total: 3, Eligible: 2, Labeled: 1, Deleted: 0}
	if counts != want {
		t.Errorf("CountFaces = %+v, want %+v", counts, want)
	}

	byAsset, _ := c.FacesByAsset(ctx, a.ID)
	if len(byAsset) != 3 {
		t.Errorf("expected 3 faces for asset, got %d", len(byAsset))
	}
}

func testDeleteFaces(t *testing.T, c database.Catalog) {
	ctx := context.Background()
	a := seedPhoto(t, c, "/lib/d.jpg")
	faces := seedFaces(t, c, a.ID, 2)
	alice, _ := c.EnsureIdentity(ctx, "Alice")
	_ = c.AssignIdentity(ctx, []int64{faces[0].ID}, alice.ID)

	if err := c.SetFacesDeleted(ctx, []int64{faces[0].ID, faces[1].ID}, true); err != nil {
		t.Fatalf("SetFacesDeleted: %v", err)
	}
	counts, _ := c.CountFaces(ctx)
	if counts.Deleted != 2 || counts.Eligible != 0 || counts.Labeled != 0 {
		t.Errorf("unexpected counts after delete %+v", counts)
	}
	f0, _ := c.GetFace(ctx, faces[0].ID)
	if !f0.Deleted || f0.IdentityID != nil {
		t.Errorf("deleted face should be tombstoned and unlabeled, got %+v", f0)
	}

	if err := c.SetFacesDeleted(ctx, []int64{faces[1].ID}, false); err != nil {
		t.Fatalf("restore: %v", err)
	}
	eligible, _ := c.ListEligibleFaces(ctx)
	if len(eligible) != 1 || eligible[0].ID != faces[1].ID {
		t.Errorf("expected restored face eligible, got %+v", eligible)
	}

	// Labeling a tombstoned face restores it.
	if err := c.AssignIdentity(ctx, []int64{faces[0].ID}, alice.ID); err != nil {
		t.Fatalf("AssignIdentity: %v", err)
	}
	f0, _ = c.GetFace(ctx, faces[0].ID)
	if f0.Deleted {
		t.Error("expected labeled face to be restored")
	}
}

func testIdentities(t *testing.T, c database.Catalog) {
	ctx := context.Background()

	first, err := c.EnsureIdentity(ctx, "  Élodie   Durand ")
	if err != nil {
		t.Fatalf("EnsureIdentity: %v", err)
	}
	if first.Name != "Élodie Durand" {
		t.Errorf("expected cleaned display name, got %q", first.Name)
	}
	again, err := c.EnsureIdentity(ctx, "elodie durand")
	if err != nil {
		t.Fatalf("EnsureIdentity again: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected normalized names to share an identity, got %d and %d", first.ID, again.ID)
	}

	found, err := c.FindIdentity(ctx, "ELODIE-DURAND")
	if err != nil || found.ID != first.ID {
		t.Errorf("FindIdentity = %+v, %v", found, err)
	}
	if _, err := c.FindIdentity(ctx, "nobody"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.EnsureIdentity(ctx, "   "); !errors.Is(err, database.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}

	if err := c.RenameIdentity(ctx, first.ID, "Elodie D."); err != nil {
		t.Fatalf("RenameIdentity: %v", err)
	}
	got, _ := c.GetIdentity(ctx, first.ID)
	if got.Name != "Elodie D." {
		t.Errorf("expected renamed identity, got %q", got.Name)
	}
	if err := c.RenameIdentity(ctx, 424242, "Ghost"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound on rename, got %v", err)
	}

	_, _ = c.EnsureIdentity(ctx, "Aaron")
	list, err := c.ListIdentities(ctx)
	if err != nil {
		t.Fatalf("ListIdentities: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Aaron" {
		t.Errorf("expected identities sorted by name, got %+v", list)
	}
}

func testCascadeDelete(t *testing.T, c database.Catalog) {
	ctx := context.Background()
	a := seedPhoto(t, c, "/lib/gone.jpg")
	faces := seedFaces(t, c, a.ID, 2)
	alice, _ := c.EnsureIdentity(ctx, "Alice")
	_ = c.AssignIdentity(ctx, []int64{faces[0].ID}, alice.ID)

	if err := c.DeleteAssets(ctx, []string{"/lib/gone.jpg"}); err != nil {
		t.Fatalf("DeleteAssets: %v", err)
	}
	counts, _ := c.CountFaces(ctx)
	if counts.Total != 0 {
		t.Errorf("expected faces removed with asset, got %+v", counts)
	}
	id, err := c.GetIdentity(ctx, alice.ID)
	if err != nil {
		t.Fatalf("identity should survive asset deletion: %v", err)
	}
	if id.FaceCount != 0 {
		t.Errorf("expected identity face count 0, got %d", id.FaceCount)
	}
}
