package facematch

import (
	"image"

	"github.com/kozaktomas/visagevault/internal/database"
)

// ComputeIoU calculates Intersection over Union between two face boxes.
func ComputeIoU(a, b database.BBox) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}

	left := max(a.Left, b.Left)
	top := max(a.Top, b.Top)
	right := min(a.Right, b.Right)
	bottom := min(a.Bottom, b.Bottom)

	if right <= left || bottom <= top {
		return 0 // No intersection
	}

	intersection := float64((right - left) * (bottom - top))
	union := float64(a.Width()*a.Height()+b.Width()*b.Height()) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// DedupeBoxes drops empty boxes and any box overlapping an earlier kept box by
// more than threshold IoU. Order of the kept boxes is preserved.
func DedupeBoxes(boxes []database.BBox, threshold float64) []database.BBox {
	kept := make([]database.BBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Empty() {
			continue
		}
		dup := false
		for _, k := range kept {
			if ComputeIoU(b, k) > threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, b)
		}
	}
	return kept
}

// CropRect expands a face box by margin (a fraction of its size on each side)
// and clamps it to bounds. Returns an empty rectangle when nothing remains.
func CropRect(b database.BBox, margin float64, bounds image.Rectangle) image.Rectangle {
	dx := int(float64(b.Width()) * margin)
	dy := int(float64(b.Height()) * margin)
	r := image.Rect(b.Left-dx, b.Top-dy, b.Right+dx, b.Bottom+dy)
	return r.Intersect(bounds)
}

// ToRectangle converts a face box to an image rectangle.
func ToRectangle(b database.BBox) image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}
