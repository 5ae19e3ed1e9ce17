package schema

import (
	"AskArchive/backend/go/internal/models"
	"strconv"
)

// Metadata keys written on every vector record.
const (
	MetaUserID      = "user_id"
	MetaSource      = "source"
	MetaSourceType  = "source_type"
	MetaDisplayName = "display_name"
	MetaText        = "text"
	MetaStart       = "start"
	MetaEnd         = "end"
)

// TextSegment is one timed piece of source text. Untimed sources use Start 0 and Duration 0.
type TextSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the segment end time.
func (s TextSegment) End() float64 {
	return s.Start + s.Duration
}

// Chunk is a bounded group of consecutive segments joined into one text.
type Chunk struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// VectorRecord is what gets written to the vector index.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is a raw hit returned by a vector store query, highest similarity first.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// RetrievedChunk is a Match with the chunk text lifted out of its metadata.
type RetrievedChunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
}

// Filter is a conjunction of metadata equality conditions.
type Filter map[string]string

// DeleteRequest scopes a vector delete inside one namespace.
// An empty Filter is only honored when DeleteAll is set.
type DeleteRequest struct {
	Filter    Filter
	DeleteAll bool
}

// Namespace returns the vector namespace that isolates one user's records.
func Namespace(userID string) string {
	return "user_" + userID
}

// ChunkID returns the deterministic record ID for the index-th chunk of a source.
func ChunkID(sourceID string, index int) string {
	return sourceID + "_chunk_" + strconv.Itoa(index)
}

// IngestRequest carries everything the ingestion pipeline needs for one source.
type IngestRequest struct {
	UserID       string
	SourceID     string
	SourceType   models.SourceType
	DisplayName  string
	Segments     []TextSegment
	MaxChars     int
	OverlapChars int
}

// ChunkOptions overrides the configured chunk sizes for one ingestion.
// A nil field keeps the configured value; an explicit 0 overlap disables overlap.
type ChunkOptions struct {
	MaxChars     *int
	OverlapChars *int
}

const (
	StatusSuccess = "success"
	StatusFailed  = "Failed"
	StatusError   = "Error"
)

// IngestResult is the outcome of a successful ingestion.
type IngestResult struct {
	Status     string `json:"status"`
	TotalCount int    `json:"total_count"`
	Message    string `json:"message,omitempty"`
}

// DeleteResult is the outcome of a successful delete.
type DeleteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Removed int64  `json:"removed"`
}

// Transcript is a fetched video transcript.
type Transcript struct {
	VideoID      string
	Title        string
	LanguageCode string
	IsGenerated  bool
	Segments     []TextSegment
}

// Document is text extracted from an uploaded file.
type Document struct {
	SourceID    string
	DisplayName string
	Segments    []TextSegment
}
