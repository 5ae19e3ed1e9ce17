package pipeline

import (
	"AskArchive/backend/go/internal/archive_service/archive/chunker"
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultBatchSize is the number of records sent to the vector store per upsert.
const DefaultBatchSize = 100

// IngestionPipeline checks for duplicates, chunks, embeds, writes vectors and finally
// registers the source row. The row is written last so that its presence implies the
// vectors are in place.
type IngestionPipeline struct {
	embedder    interfaces.Embedder
	vectorStore interfaces.VectorStore
	metadata    interfaces.MetadataStore
	reporter    interfaces.SyncReporter
	batchSize   int
	log         *logger.Logger
}

// IngestionOption configures an IngestionPipeline.
type IngestionOption func(*IngestionPipeline)

// WithBatchSize overrides DefaultBatchSize. Non-positive values are ignored.
func WithBatchSize(n int) IngestionOption {
	return func(p *IngestionPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithIngestionReporter publishes orphaned-vector events when a run fails after writing.
func WithIngestionReporter(r interfaces.SyncReporter) IngestionOption {
	return func(p *IngestionPipeline) {
		p.reporter = r
	}
}

// NewIngestionPipeline creates a new IngestionPipeline.
func NewIngestionPipeline(
	embedder interfaces.Embedder,
	vectorStore interfaces.VectorStore,
	metadata interfaces.MetadataStore,
	log *logger.Logger,
	opts ...IngestionOption,
) *IngestionPipeline {
	p := &IngestionPipeline{
		embedder:    embedder,
		vectorStore: vectorStore,
		metadata:    metadata,
		batchSize:   DefaultBatchSize,
		log:         log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests one source for one user.
func (p *IngestionPipeline) Run(ctx context.Context, req schema.IngestRequest) (*schema.IngestResult, error) {
	const op = "ingest"
	if err := validateIngest(req); err != nil {
		return nil, err
	}
	namespace := schema.Namespace(req.UserID)
	p.log.Info(fmt.Sprintf("Starting ingestion of %s source '%s' for user %s", req.SourceType, req.SourceID, req.UserID))

	// 1. Reject sources that are already archived
	exists, err := p.metadata.Exists(ctx, req.UserID, req.SourceID)
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to check for existing source '%s': %v", req.SourceID, err))
		return nil, schema.E(schema.KindRelational, op, "failed to check for existing source", err)
	}
	if exists {
		p.log.Info(fmt.Sprintf("Source '%s' already exists for user %s", req.SourceID, req.UserID))
		return nil, schema.E(schema.KindDuplicateSource, op, "Source already exists", nil)
	}

	// 2. Chunk
	chunks, err := chunker.Chunk(req.Segments, req.MaxChars, req.OverlapChars)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		p.log.Info(fmt.Sprintf("No chunks generated for source '%s'", req.SourceID))
		return &schema.IngestResult{Status: schema.StatusSuccess, TotalCount: 0, Message: "No chunks generated."}, nil
	}
	p.log.Info(fmt.Sprintf("Split source '%s' into %d chunks", req.SourceID, len(chunks)))

	// 3. Embed every chunk in one call
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to embed chunks: %v", err))
		return nil, schema.E(schema.KindEmbedding, op, "failed to embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		p.log.Error(fmt.Sprintf("Embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
		return nil, schema.E(schema.KindEmbedding, op,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)), nil)
	}

	// 4. Build records
	records := make([]schema.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = schema.VectorRecord{
			ID:     schema.ChunkID(req.SourceID, i),
			Values: vectors[i],
			Metadata: map[string]any{
				schema.MetaUserID:      req.UserID,
				schema.MetaSource:      req.SourceID,
				schema.MetaSourceType:  string(req.SourceType),
				schema.MetaDisplayName: req.DisplayName,
				schema.MetaText:        c.Text,
				schema.MetaStart:       c.Start,
				schema.MetaEnd:         c.End,
			},
		}
	}

	// 5. Upsert sequentially in batches
	written := 0
	batches := (len(records) + p.batchSize - 1) / p.batchSize
	for b := 0; b < batches; b++ {
		start := b * p.batchSize
		end := min(start+p.batchSize, len(records))
		n, err := p.vectorStore.Upsert(ctx, namespace, records[start:end])
		if err != nil {
			p.log.Error(fmt.Sprintf("Failed to upsert batch %d/%d for source '%s': %v", b+1, batches, req.SourceID, err))
			e := &schema.Error{
				Kind:    schema.KindVectorStore,
				Op:      op,
				Message: fmt.Sprintf("upsert of batch %d/%d failed", b+1, batches),
				Written: written,
				Err:     err,
			}
			p.reportOrphans(ctx, req, written, e.Error())
			return nil, e
		}
		written += n
	}
	p.log.Info(fmt.Sprintf("Upserted %d records into namespace %s", written, namespace))

	// 6. Register the source row last
	src := &models.IngestionSource{
		UserID:      req.UserID,
		SourceID:    req.SourceID,
		SourceType:  req.SourceType,
		DisplayName: req.DisplayName,
	}
	if err := p.metadata.RegisterSource(ctx, src); err != nil {
		p.log.Error(fmt.Sprintf("Failed to register source '%s': %v", req.SourceID, err))
		e := &schema.Error{
			Kind:    schema.KindRelational,
			Op:      op,
			Message: "failed to register source",
			Written: written,
			Err:     err,
		}
		p.reportOrphans(ctx, req, written, e.Error())
		return nil, e
	}

	p.log.Info(fmt.Sprintf("Successfully ingested source '%s' (%d chunks)", req.SourceID, written))
	return &schema.IngestResult{Status: schema.StatusSuccess, TotalCount: written}, nil
}

// reportOrphans records that vectors exist without a metadata row. Nothing is rolled back;
// deterministic record IDs let a retry overwrite them.
func (p *IngestionPipeline) reportOrphans(ctx context.Context, req schema.IngestRequest, written int, msg string) {
	if written == 0 {
		return
	}
	p.log.WithPayload(map[string]interface{}{
		"user_id":   req.UserID,
		"source_id": req.SourceID,
		"written":   written,
	}).Warn("Vector records left without a metadata row")

	if p.reporter == nil {
		return
	}
	event := &models.SyncEvent{
		Type:      models.SyncOrphanedVectors,
		UserID:    req.UserID,
		SourceID:  req.SourceID,
		Namespace: schema.Namespace(req.UserID),
		Written:   written,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
	if err := p.reporter.Report(ctx, event); err != nil {
		p.log.Error(fmt.Sprintf("Failed to report orphaned vectors for '%s': %v", req.SourceID, err))
	}
}

func validateIngest(req schema.IngestRequest) error {
	const op = "ingest"
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return schema.E(schema.KindInvalidInput, op, "user id is required", nil)
	case strings.TrimSpace(req.SourceID) == "":
		return schema.E(schema.KindInvalidInput, op, "source id is required", nil)
	case !req.SourceType.Valid():
		return schema.E(schema.KindInvalidInput, op, fmt.Sprintf("unknown source type %q", req.SourceType), nil)
	}
	return nil
}
