package interfaces

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"context"
)

// Embedder turns texts into vectors. It is all-or-nothing: on success the result has
// exactly one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is a namespaced similarity index.
type VectorStore interface {
	// Upsert writes records into namespace, replacing records with the same ID.
	// It returns how many records were written.
	Upsert(ctx context.Context, namespace string, records []schema.VectorRecord) (int, error)
	// Query returns up to topK matches ordered by descending similarity, metadata only.
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter schema.Filter) ([]schema.Match, error)
	// Delete removes the records in namespace matching req.
	Delete(ctx context.Context, namespace string, req schema.DeleteRequest) error
}

// MetadataStore keeps one relational row per archived source.
type MetadataStore interface {
	Exists(ctx context.Context, userID, sourceID string) (bool, error)
	// RegisterSource inserts the row, or does nothing if the pair already exists.
	RegisterSource(ctx context.Context, source *models.IngestionSource) error
	ListSources(ctx context.Context, userID string) ([]*models.IngestionSource, error)
	DeleteSource(ctx context.Context, userID, sourceID string) (int64, error)
	DeleteUserSources(ctx context.Context, userID string) (int64, error)
}

// TranscriptExtractor fetches a timed transcript for a video reference (ID or URL).
type TranscriptExtractor interface {
	Fetch(ctx context.Context, videoRef string) (*schema.Transcript, error)
}

// DocumentExtractor pulls text out of an uploaded file.
type DocumentExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*schema.Document, error)
}

// AnswerGenerator produces an answer for a fully built prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SyncReporter publishes cross-store inconsistencies for later reconciliation.
type SyncReporter interface {
	Report(ctx context.Context, event *models.SyncEvent) error
}
