// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Date bucket sentinels
const (
	// UnknownYear is the year bucket for assets whose capture date could not be resolved
	UnknownYear = "unknown"

	// UnknownMonth is the month bucket for assets without a resolvable month
	UnknownMonth = "00"
)

// Thumbnail constants
const (
	// DefaultThumbnailSize is the bounding box edge (pixels) for generated thumbnails
	DefaultThumbnailSize = 128

	// FaceCropSize is the bounding box edge (pixels) for face crop previews
	FaceCropSize = 160

	// FaceCropMargin is the fraction of the face box added on each side of a crop
	FaceCropMargin = 0.25

	// ThumbnailJPEGQuality is the JPEG quality used for cached previews
	ThumbnailJPEGQuality = 85

	// ThumbnailDirName is the cache subdirectory holding asset thumbnails
	ThumbnailDirName = "thumbnails"

	// FaceDirName is the cache subdirectory holding face crops
	FaceDirName = "faces"

	// PreviewRenderTimeout bounds one preview generation, independent of the requesting caller
	PreviewRenderTimeout = 2 * time.Minute
)

// Clustering constants
const (
	// DefaultClusterEps is the DBSCAN neighborhood radius (Euclidean) for face embeddings
	DefaultClusterEps = 0.5

	// DefaultClusterMinSamples is the minimum number of faces forming a cluster
	DefaultClusterMinSamples = 2

	// SuggestionMaxDistance is the largest centroid distance at which an identity is suggested
	SuggestionMaxDistance = 0.6

	// SuggestionNeighbors is how many labeled faces are consulted for a suggestion
	SuggestionNeighbors = 10

	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100
)

// Face pipeline constants
const (
	// DuplicateDetectionIoU is the overlap above which two detections are treated as one face
	DuplicateDetectionIoU = 0.9

	// DefaultFaceConcurrency is the number of assets analyzed in parallel
	DefaultFaceConcurrency = 1

	// MaxImageSize is the maximum dimension (width or height) sent to the face service
	MaxImageSize = 1920
)

// Scheduler constants
const (
	// DefaultPreloadMarginPx extends the visible area on the scroll axis when deciding what to load
	DefaultPreloadMarginPx = 500

	// TaskQueueSize is the buffered depth of the short-task worker pool
	TaskQueueSize = 4096

	// DefaultViewportIdleTimeout expires viewport sessions that have no event stream attached
	DefaultViewportIdleTimeout = 10 * time.Minute
)

// Scan and shutdown constants
const (
	// ScanProgressEvery is how many enumerated files pass between progress reports
	ScanProgressEvery = 100

	// DeleteChunkSize bounds the number of paths in a single DELETE ... IN statement
	DeleteChunkSize = 500

	// DefaultShutdownTimeout bounds each shutdown phase (scan join, pool drain, HTTP)
	DefaultShutdownTimeout = 10 * time.Second

	// WatchDebounce is the quiet period after filesystem events before a rescan starts
	WatchDebounce = 5 * time.Second
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
