package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeFunc decodes a media file into pixels.
type DecodeFunc func(ctx context.Context, path string) (image.Image, error)

// maxEmbeddedProbes bounds the JPEG start markers tried inside a RAW file.
const maxEmbeddedProbes = 64

// DecodeImage decodes a still image, falling back to RAW decoding when no
// registered codec accepts the file.
func DecodeImage(ctx context.Context, path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	raw, rawErr := decodeRAW(data)
	if rawErr != nil {
		return nil, fmt.Errorf("decode image: %w", errors.Join(err, rawErr))
	}
	return raw, nil
}

// decodeRAW reads camera RAW files. Most are TIFF containers; when the TIFF
// decoder cannot handle the sensor data, the largest embedded JPEG preview is used.
func decodeRAW(data []byte) (image.Image, error) {
	if img, err := tiff.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img := largestEmbeddedJPEG(data); img != nil {
		return img, nil
	}
	return nil, errors.New("no decodable RAW preview")
}

func largestEmbeddedJPEG(data []byte) image.Image {
	soi := []byte{0xFF, 0xD8, 0xFF}
	var best image.Image
	bestPixels := 0

	offset := 0
	for probes := 0; probes < maxEmbeddedProbes; probes++ {
		i := bytes.Index(data[offset:], soi)
		if i < 0 {
			break
		}
		start := offset + i
		offset = start + len(soi)

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data[start:]))
		if err != nil || cfg.Width*cfg.Height <= bestPixels {
			continue
		}
		img, err := jpeg.Decode(bytes.NewReader(data[start:]))
		if err != nil {
			continue
		}
		best = img
		bestPixels = cfg.Width * cfg.Height
	}
	return best
}

// FFmpegDecoder returns a DecodeFunc extracting the first video frame with ffmpeg.
func FFmpegDecoder(ffmpegPath string) DecodeFunc {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return func(ctx context.Context, path string) (image.Image, error) {
		cmd := exec.CommandContext(ctx, ffmpegPath,
			"-v", "error",
			"-i", path,
			"-frames:v", "1",
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg first frame failed: %w; out=%s", err, stderr.String())
		}
		img, _, err := image.Decode(&stdout)
		if err != nil {
			return nil, fmt.Errorf("decode video frame: %w", err)
		}
		return img, nil
	}
}
