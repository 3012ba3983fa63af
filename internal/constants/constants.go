// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultDistanceThreshold is the default maximum Euclidean distance for
	// face matching, used for both duplicate detection and identification
	// unless overridden per mode. Corresponds to roughly 65% minimum similarity.
	DefaultDistanceThreshold = 0.35

	// DefaultSearchLimit is the default limit for similarity search results
	DefaultSearchLimit = 20

	// AuditCandidateLimit is how many nearest neighbours the duplicate audit
	// fetches per enrolled member
	AuditCandidateLimit = 5
)

// Embedding constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the
	// embedding service; larger captures are downscaled first
	MaxImageSize = 1024
)

// Pagination constants
const (
	// DefaultCheckinLimit is the default number of check-ins returned per member
	DefaultCheckinLimit = 50
)
