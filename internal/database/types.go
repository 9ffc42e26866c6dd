package database

import (
	"encoding/json"
	"fmt"
	"time"
)

// MediaKind distinguishes the independently scanned media families.
type MediaKind string

const (
	KindPhoto MediaKind = "photo"
	KindVideo MediaKind = "video"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == KindPhoto || k == KindVideo
}

// Bucket is the temporal grouping of an asset.
type Bucket struct {
	Year  string `json:"year"`
	Month string `json:"month"`
}

// Asset is one indexed media file.
type Asset struct {
	ID          int64
	Path        string
	Kind        MediaKind
	ContentHash string // empty until the face pipeline has read the file
	Year        string
	Month       string
	FaceScanned bool
	CreatedAt   time.Time
}

// Bucket returns the asset's temporal bucket.
func (a Asset) Bucket() Bucket {
	return Bucket{Year: a.Year, Month: a.Month}
}

// BBox is a face location in source-image pixels, in top/right/bottom/left order.
type BBox struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() int { return b.Right - b.Left }

// Height returns the vertical extent of the box.
func (b BBox) Height() int { return b.Bottom - b.Top }

// Empty reports whether the box has no area.
func (b BBox) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// MarshalJSON encodes the box as [top, right, bottom, left].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.Top, b.Right, b.Bottom, b.Left})
}

// UnmarshalJSON decodes a [top, right, bottom, left] array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode bbox: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("decode bbox: expected 4 ordinates, got %d", len(v))
	}
	*b = BBox{Top: v[0], Right: v[1], Bottom: v[2], Left: v[3]}
	return nil
}

// EncodeLocation renders the box for the faces.location text column.
func EncodeLocation(b BBox) string {
	data, _ := b.MarshalJSON()
	return string(data)
}

// ParseLocation parses the faces.location text column.
func ParseLocation(s string) (BBox, error) {
	var b BBox
	if err := b.UnmarshalJSON([]byte(s)); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Face is one detected face within an asset.
type Face struct {
	ID        int64
	AssetID   int64
	AssetPath string
	Embedding []float32
	Location  BBox
	Deleted   bool
	CreatedAt time.Time

	// Label. A face carries at most one identity.
	IdentityID   *int64
	IdentityName string
}

// Eligible reports whether the face belongs in the clustering input.
func (f Face) Eligible() bool {
	return !f.Deleted && f.IdentityID == nil
}

// Identity is a named person faces can be labeled with.
type Identity struct {
	ID        int64
	Name      string
	FaceCount int
	CreatedAt time.Time
}

// FaceCounts summarizes the face table.
type FaceCounts struct {
	Total    int `json:"total"`
	Eligible int `json:"eligible"`
	Labeled  int `json:"labeled"`
	Deleted  int `json:"deleted"`
}
