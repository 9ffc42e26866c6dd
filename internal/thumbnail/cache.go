// Package thumbnail maintains the on-disk preview cache for assets and face crops.
package thumbnail

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/kozaktomas/visagevault/internal/constants"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/facematch"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

// Key returns the cache file name for an original path. It depends only on the
// path string, so edits to the original do not invalidate the preview.
func Key(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:]) + ".jpg"
}

// Options configures a Cache.
type Options struct {
	Dir             string
	Size            int
	VideoExtensions []string
	DecodeImage     DecodeFunc
	DecodeVideo     DecodeFunc
}

// Cache is a path-addressed preview cache. It is safe for concurrent use.
type Cache struct {
	thumbDir    string
	faceDir     string
	size        int
	videoExts   map[string]bool
	decodeImage DecodeFunc
	decodeVideo DecodeFunc
	group       singleflight.Group
	generated   atomic.Int64
	log         zerolog.Logger
}

// New creates the cache directories and returns a Cache.
func New(opts Options, log zerolog.Logger) (*Cache, error) {
	if opts.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if opts.Size <= 0 {
		opts.Size = constants.DefaultThumbnailSize
	}
	if opts.DecodeImage == nil {
		opts.DecodeImage = DecodeImage
	}
	if opts.DecodeVideo == nil {
		opts.DecodeVideo = FFmpegDecoder("")
	}

	c := &Cache{
		thumbDir:    filepath.Join(opts.Dir, constants.ThumbnailDirName),
		faceDir:     filepath.Join(opts.Dir, constants.FaceDirName),
		size:        opts.Size,
		videoExts:   make(map[string]bool, len(opts.VideoExtensions)),
		decodeImage: opts.DecodeImage,
		decodeVideo: opts.DecodeVideo,
		log:         log,
	}
	for _, e := range opts.VideoExtensions {
		c.videoExts[strings.ToLower(e)] = true
	}
	if err := c.ensureDirs(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) ensureDirs() error {
	for _, dir := range []string{c.thumbDir, c.faceDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	return nil
}

// Path returns where the preview of original is (or would be) stored.
func (c *Cache) Path(original string) string {
	return filepath.Join(c.thumbDir, Key(original))
}

// FacePath returns where the crop of a face is (or would be) stored.
func (c *Cache) FacePath(faceID int64) string {
	return filepath.Join(c.faceDir, "face_"+strconv.FormatInt(faceID, 10)+".jpg")
}

// Generated returns how many previews this cache has written.
func (c *Cache) Generated() int64 {
	return c.generated.Load()
}

// GetOrCreate returns the cached preview path for original, generating it
// first if needed. An empty string means the preview could not be produced.
func (c *Cache) GetOrCreate(ctx context.Context, original string) string {
	dst := c.Path(original)
	return c.getOrCreate(ctx, dst, func(ctx context.Context) (image.Image, error) {
		src, err := c.decode(ctx, original)
		if err != nil {
			return nil, err
		}
		return fit(flatten(src), c.size), nil
	}, original)
}

// FaceCrop returns the cached crop of a face, generating it from the source
// asset if needed. An empty string means the crop could not be produced.
func (c *Cache) FaceCrop(ctx context.Context, face database.Face) string {
	dst := c.FacePath(face.ID)
	return c.getOrCreate(ctx, dst, func(ctx context.Context) (image.Image, error) {
		src, err := c.decodeImage(ctx, face.AssetPath)
		if err != nil {
			return nil, err
		}
		r := facematch.CropRect(face.Location, constants.FaceCropMargin, src.Bounds())
		if r.Empty() {
			return nil, fmt.Errorf("face %d lies outside the image", face.ID)
		}
		return fit(flatten(subImage(src, r)), constants.FaceCropSize), nil
	}, face.AssetPath)
}

// getOrCreate renders dst once for all concurrent callers. The render runs on
// a context detached from the first caller, so one caller giving up does not
// fail the preview for everyone sharing the flight.
func (c *Cache) getOrCreate(ctx context.Context, dst string, render func(context.Context) (image.Image, error), source string) string {
	if exists(dst) {
		return dst
	}
	_, err, _ := c.group.Do(dst, func() (any, error) {
		if exists(dst) {
			return nil, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.PreviewRenderTimeout)
		defer cancel()
		img, err := render(rctx)
		if err != nil {
			return nil, err
		}
		if err := writeJPEG(dst, img); err != nil {
			return nil, err
		}
		c.generated.Add(1)
		return nil, nil
	})
	if err != nil {
		c.log.Debug().Err(err).Str("path", source).Msg("preview generation failed")
		return ""
	}
	return dst
}

func (c *Cache) decode(ctx context.Context, path string) (image.Image, error) {
	if c.videoExts[strings.ToLower(filepath.Ext(path))] {
		return c.decodeVideo(ctx, path)
	}
	return c.decodeImage(ctx, path)
}

// Clear removes every cached preview and crop.
func (c *Cache) Clear() error {
	for _, dir := range []string{c.thumbDir, c.faceDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	return c.ensureDirs()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// writeJPEG encodes into a temp file next to dst and renames it into place,
// so readers never observe a partial file.
func writeJPEG(dst string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*.jpg")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: constants.ThumbnailJPEGQuality}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("store preview: %w", err)
	}
	return nil
}

// flatten composites img onto white, dropping any alpha channel.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// fit scales img down to fit a maxSize square, keeping aspect ratio.
// Smaller images are returned unchanged.
func fit(img *image.RGBA, maxSize int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxSize && height <= maxSize {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
