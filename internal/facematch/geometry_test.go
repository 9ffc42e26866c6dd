package facematch

import (
	"image"
	"math"
	"testing"

	"github.com/kozaktomas/visagevault/internal/database"
)

// box builds a BBox from corner coordinates for readability.
func box(x1, y1, x2, y2 int) database.BBox {
	return database.BBox{Top: y1, Right: x2, Bottom: y2, Left: x1}
}

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        database.BBox
		b        database.BBox
		expected float64
	}{
		{"identical boxes", box(0, 0, 10, 10), box(0, 0, 10, 10), 1.0},
		{"no overlap", box(0, 0, 10, 10), box(20, 20, 30, 30), 0.0},
		{"partial overlap", box(0, 0, 10, 10), box(5, 5, 15, 15), 25.0 / 175.0},
		{"one inside other", box(0, 0, 20, 20), box(5, 5, 15, 15), 100.0 / 400.0},
		{"touching edges", box(0, 0, 10, 10), box(10, 0, 20, 10), 0.0},
		{"empty box", box(0, 0, 0, 10), box(0, 0, 10, 10), 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestDedupeBoxes(t *testing.T) {
	boxes := []database.BBox{
		box(0, 0, 100, 100),
		box(1, 1, 100, 100), // near-duplicate of the first
		box(200, 200, 260, 260),
		box(5, 5, 5, 50), // empty
	}

	got := DedupeBoxes(boxes, 0.9)

	if len(got) != 2 {
		t.Fatalf("expected 2 boxes, got %d: %v", len(got), got)
	}
	if got[0] != boxes[0] || got[1] != boxes[2] {
		t.Errorf("unexpected boxes kept: %v", got)
	}
}

func TestCropRect(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)

	tests := []struct {
		name     string
		b        database.BBox
		margin   float64
		expected image.Rectangle
	}{
		{"no margin", box(10, 10, 50, 50), 0, image.Rect(10, 10, 50, 50)},
		{"with margin", box(40, 40, 80, 80), 0.25, image.Rect(30, 30, 90, 90)},
		{"clamped to bounds", box(0, 0, 40, 40), 0.5, image.Rect(0, 0, 60, 60)},
		{"outside image", box(300, 300, 340, 340), 0, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropRect(tt.b, tt.margin, bounds)
			if got != tt.expected && !(got.Empty() && tt.expected.Empty()) {
				t.Errorf("CropRect = %v, want %v", got, tt.expected)
			}
		})
	}
}
