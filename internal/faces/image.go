package faces

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// prepareImage downsizes an image so neither side exceeds maxSize and returns
// the JPEG payload with the applied scale factor. Images that cannot be decoded
// are passed through unchanged with scale 1 and left to the service.
func prepareImage(data []byte, maxSize int) ([]byte, float64) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, 1
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSize && height <= maxSize {
		return data, 1
	}

	scale := float64(maxSize) / float64(max(width, height))
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: constants.ThumbnailJPEGQuality}); err != nil {
		return data, 1
	}
	return buf.Bytes(), scale
}

// unscaleBox maps a box from the downsized payload back to source pixels.
func unscaleBox(b database.BBox, scale float64) database.BBox {
	if scale == 1 {
		return b
	}
	f := func(v int) int { return int(math.Round(float64(v) / scale)) }
	return database.BBox{Top: f(b.Top), Right: f(b.Right), Bottom: f(b.Bottom), Left: f(b.Left)}
}

// contentHash is the hex xxhash64 of the file bytes.
func contentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
