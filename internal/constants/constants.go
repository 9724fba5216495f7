// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Gallery layout constants
const (
	// DuplicatesDirName is the quarantine folder created inside a month directory
	DuplicatesDirName = "duplicates"

	// SummaryDirName is the per-year folder holding the mirrored dedupe log
	SummaryDirName = "duplicates_summary"

	// SummaryFileName is the file name of the mirrored dedupe log
	SummaryFileName = "dedupe_log.csv"

	// CentralLogPrefix is the prefix of the central per-year log file (dedupe_log_{year}.csv)
	CentralLogPrefix = "dedupe_log_"
)

// Duplicate detection constants
const (
	// DefaultSimilarityThreshold is the default min cosine similarity for two images to be duplicates
	DefaultSimilarityThreshold = 0.95

	// DefaultLeaderPolicy keeps the first image found in scan order
	DefaultLeaderPolicy = "earliest"

	// MinImagesPerPeriod is the minimum number of images needed to look for duplicates
	MinImagesPerPeriod = 2
)

// Processing constants
const (
	// ImageSize is the width and height images are normalized to before embedding
	ImageSize = 224

	// DefaultEmbeddingConcurrency is the default number of parallel embedding requests
	DefaultEmbeddingConcurrency = 4

	// DefaultSimilarLimit is the default number of neighbours returned by the similar command
	DefaultSimilarLimit = 10
)

// Log marker values written when a period has no duplicates
const (
	NoneMarker         = "None"
	NoDuplicatesMarker = "No duplicates found"
)
