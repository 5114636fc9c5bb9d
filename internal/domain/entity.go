package domain

import (
	"strings"
	"time"
)

// ManualReview is the sentinel for any value that could not be resolved with
// confidence. It is also the status of rows waiting for a human.
const ManualReview = "Manual Review"

// PendingLocation is the location token of an entity that exists only in
// memory and has not been appended to the tracker table yet.
const PendingLocation int64 = -1

// Entity is one tracked row: a job application or a grant proposal.
type Entity struct {
	Primary    string
	Secondary  string
	Status     string
	PeakStatus string
	LastUpdate time.Time
	Subject    string
	Permalink  string
	MessageID  string
	ThreadID   string
	Notes      string
	Location   int64
}

// Pending reports whether the entity still waits for its first write.
func (e *Entity) Pending() bool {
	return e.Location == PendingLocation
}

// ExtractionMethod records which stage produced a candidate.
type ExtractionMethod string

const (
	MethodAI       ExtractionMethod = "ai"
	MethodFallback ExtractionMethod = "fallback"
	MethodMixed    ExtractionMethod = "ai+fallback"
	MethodNone     ExtractionMethod = "none"
)

// Candidate is the typed record extracted from a single message.
type Candidate struct {
	Primary    string
	Secondary  string
	Status     string
	Confidence float64
	Method     ExtractionMethod

	// Failed is set when neither extractor produced anything usable;
	// Err carries the failure detail for the error row.
	Failed bool
	Err    string

	Subject   string
	MessageID string
	ThreadID  string
	Permalink string
	Timestamp time.Time
}

// NeedsReview reports whether the candidate must be quarantined from matching.
func (c Candidate) NeedsReview() bool {
	return c.Failed || IsManualReview(c.Primary) || IsManualReview(c.Secondary)
}

// IsManualReview treats blank values the same as the explicit sentinel.
func IsManualReview(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.EqualFold(value, ManualReview)
}
