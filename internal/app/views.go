package app

import (
	"github.com/kozaktomas/visagevault/internal/cluster"
	"github.com/kozaktomas/visagevault/internal/database"
)

// FaceView is the API shape of a face.
type FaceView struct {
	ID           int64         `json:"id"`
	AssetID      int64         `json:"asset_id"`
	AssetPath    string        `json:"asset_path"`
	Location     database.BBox `json:"location"`
	Deleted      bool          `json:"deleted"`
	IdentityID   *int64        `json:"identity_id,omitempty"`
	IdentityName string        `json:"identity_name,omitempty"`
}

// NewFaceView drops the embedding, which clients never need.
func NewFaceView(f database.Face) FaceView {
	return FaceView{
		ID:           f.ID,
		AssetID:      f.AssetID,
		AssetPath:    f.AssetPath,
		Location:     f.Location,
		Deleted:      f.Deleted,
		IdentityID:   f.IdentityID,
		IdentityName: f.IdentityName,
	}
}

// FaceViews converts a slice of faces.
func FaceViews(faces []database.Face) []FaceView {
	out := make([]FaceView, len(faces))
	for i, f := range faces {
		out[i] = NewFaceView(f)
	}
	return out
}

// ClusterInfo is the API shape of a cluster.
type ClusterInfo struct {
	Index      int                 `json:"index"`
	Faces      []FaceView          `json:"faces"`
	Suggestion *cluster.Suggestion `json:"suggestion,omitempty"`
}

// NewClusterInfo converts a cluster for clients.
func NewClusterInfo(c cluster.Cluster) ClusterInfo {
	return ClusterInfo{Index: c.Index, Faces: FaceViews(c.Faces), Suggestion: c.Suggestion}
}
