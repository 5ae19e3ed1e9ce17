package service

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/pipeline"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"
)

// Locker serializes ingestion of the same source.
type Locker interface {
	// TryLock acquires key for ttl. It returns a KindBusy error if the key is already held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

// HistoryStore keeps the turns of a query session.
type HistoryStore interface {
	Load(ctx context.Context, userID, sessionID string, limit int) ([]models.ChatMessage, error)
	Append(ctx context.Context, userID, sessionID string, msgs ...models.ChatMessage) error
	ClearUser(ctx context.Context, userID string) error
}

// UploadStore archives the raw bytes of uploaded files.
type UploadStore interface {
	Put(ctx context.Context, userID, sourceID, contentType string, data []byte) error
	Delete(ctx context.Context, userID, sourceID string) error
	DeleteUser(ctx context.Context, userID string) (int, error)
}

// Settings are the request defaults and limits applied by the Service.
type Settings struct {
	MaxChars       int
	OverlapChars   int
	TopK           int
	HistoryLimit   int
	LockTTL        time.Duration
	MaxUploadBytes int64
}

// QueryResult is the answer to a question together with the chunks it was built from.
type QueryResult struct {
	Answer  string                  `json:"answer"`
	Sources []schema.RetrievedChunk `json:"sources"`
}

// Service is the application layer behind the HTTP API and the MCP tools. It resolves
// sources through the extractors, serializes writes per source and runs the pipelines.
type Service struct {
	metadata  interfaces.MetadataStore
	ingestion *pipeline.IngestionPipeline
	deletion  *pipeline.DeletionPipeline
	retrieval *pipeline.RetrievalPipeline
	qa        *pipeline.QAPipeline
	videos    interfaces.TranscriptExtractor
	documents interfaces.DocumentExtractor
	locker    Locker
	history   HistoryStore
	uploads   UploadStore
	settings  Settings
	log       *logger.Logger
}

// Option configures the optional collaborators of a Service.
type Option func(*Service)

// WithLocker enables per-source ingestion locks.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithHistory enables conversation history for Query.
func WithHistory(h HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithUploads archives uploaded PDFs after a successful ingest.
func WithUploads(u UploadStore) Option {
	return func(s *Service) { s.uploads = u }
}

// WithQA enables Query. Without it only Search is available.
func WithQA(qa *pipeline.QAPipeline) Option {
	return func(s *Service) { s.qa = qa }
}

// New creates a Service. Zero settings fall back to the pipeline defaults.
func New(
	metadata interfaces.MetadataStore,
	ingestion *pipeline.IngestionPipeline,
	deletion *pipeline.DeletionPipeline,
	retrieval *pipeline.RetrievalPipeline,
	videos interfaces.TranscriptExtractor,
	documents interfaces.DocumentExtractor,
	settings Settings,
	log *logger.Logger,
	opts ...Option,
) *Service {
	if settings.MaxChars <= 0 {
		settings.MaxChars = 2000
	}
	if settings.OverlapChars < 0 {
		settings.OverlapChars = 0
	}
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	if settings.LockTTL <= 0 {
		settings.LockTTL = 10 * time.Minute
	}
	s := &Service{
		metadata:  metadata,
		ingestion: ingestion,
		deletion:  deletion,
		retrieval: retrieval,
		videos:    videos,
		documents: documents,
		settings:  settings,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// chunking resolves the chunk parameters of one request against the configured defaults.
func (s *Service) chunking(opts schema.ChunkOptions) (int, int) {
	maxChars, overlapChars := s.settings.MaxChars, s.settings.OverlapChars
	if opts.MaxChars != nil {
		maxChars = *opts.MaxChars
	}
	if opts.OverlapChars != nil {
		overlapChars = *opts.OverlapChars
	}
	return maxChars, overlapChars
}

// IngestVideo fetches the transcript of videoRef and archives it for userID.
// The source id is the canonical video id and the display name the video title.
func (s *Service) IngestVideo(ctx context.Context, userID, videoRef string, opts schema.ChunkOptions) (*schema.IngestResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, schema.E(schema.KindInvalidInput, "ingest_video", "user id is required", nil)
	}
	transcript, err := s.videos.Fetch(ctx, videoRef)
	if err != nil {
		return nil, err
	}
	maxChars, overlapChars := s.chunking(opts)

	return s.ingestLocked(ctx, schema.IngestRequest{
		UserID:       userID,
		SourceID:     transcript.VideoID,
		SourceType:   models.SourceTypeVideo,
		DisplayName:  transcript.Title,
		Segments:     transcript.Segments,
		MaxChars:     maxChars,
		OverlapChars: overlapChars,
	})
}

// IngestPDF extracts the text of an uploaded PDF and archives it for userID under its file name.
func (s *Service) IngestPDF(ctx context.Context, userID, filename string, data []byte, opts schema.ChunkOptions) (*schema.IngestResult, error) {
	const op = "ingest_pdf"
	if strings.TrimSpace(userID) == "" {
		return nil, schema.E(schema.KindInvalidInput, op, "user id is required", nil)
	}
	if limit := s.settings.MaxUploadBytes; limit > 0 && int64(len(data)) > limit {
		return nil, schema.E(schema.KindInvalidInput, op, fmt.Sprintf("file exceeds the %d byte upload limit", limit), nil)
	}
	doc, err := s.documents.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	maxChars, overlapChars := s.chunking(opts)

	res, err := s.ingestLocked(ctx, schema.IngestRequest{
		UserID:       userID,
		SourceID:     doc.SourceID,
		SourceType:   models.SourceTypePDF,
		DisplayName:  doc.DisplayName,
		Segments:     doc.Segments,
		MaxChars:     maxChars,
		OverlapChars: overlapChars,
	})
	if err != nil {
		return nil, err
	}

	if s.uploads != nil && res.TotalCount > 0 {
		if err := s.uploads.Put(ctx, userID, doc.SourceID, "application/pdf", data); err != nil {
			s.log.Warn(fmt.Sprintf("Failed to archive upload '%s' for user %s: %v", doc.SourceID, userID, err))
		}
	}
	return res, nil
}

func (s *Service) ingestLocked(ctx context.Context, req schema.IngestRequest) (*schema.IngestResult, error) {
	if s.locker != nil {
		key := "archive:ingest:" + req.UserID + ":" + req.SourceID
		unlock, err := s.locker.TryLock(ctx, key, s.settings.LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			// The request context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				s.log.Warn(fmt.Sprintf("Failed to release ingest lock %s: %v", key, err))
			}
		}()
	}
	return s.ingestion.Run(ctx, req)
}

// ListSources returns the user's archived sources, newest first.
func (s *Service) ListSources(ctx context.Context, userID string) ([]*models.IngestionSource, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, schema.E(schema.KindInvalidInput, "list_sources", "user id is required", nil)
	}
	sources, err := s.metadata.ListSources(ctx, userID)
	if err != nil {
		return nil, schema.E(schema.KindRelational, "list_sources", "failed to list sources", err)
	}
	return sources, nil
}

// DeleteSource removes one source. The archived upload, if any, is removed on a best-effort basis.
func (s *Service) DeleteSource(ctx context.Context, userID, sourceID string) (*schema.DeleteResult, error) {
	res, err := s.deletion.DeleteSource(ctx, userID, sourceID)
	if err != nil {
		return nil, err
	}
	if s.uploads != nil {
		if err := s.uploads.Delete(ctx, userID, sourceID); err != nil {
			s.log.Warn(fmt.Sprintf("Failed to remove archived upload '%s' for user %s: %v", sourceID, userID, err))
		}
	}
	return res, nil
}

// DeleteUser wipes everything archived for userID, including uploads and query history.
func (s *Service) DeleteUser(ctx context.Context, userID string) (*schema.DeleteResult, error) {
	res, err := s.deletion.DeleteUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.uploads != nil {
		if n, err := s.uploads.DeleteUser(ctx, userID); err != nil {
			s.log.Warn(fmt.Sprintf("Failed to remove archived uploads for user %s: %v", userID, err))
		} else if n > 0 {
			s.log.Info(fmt.Sprintf("Removed %d archived uploads for user %s", n, userID))
		}
	}
	if s.history != nil {
		if err := s.history.ClearUser(ctx, userID); err != nil {
			s.log.Warn(fmt.Sprintf("Failed to clear query history for user %s: %v", userID, err))
		}
	}
	return res, nil
}

// Search returns the chunks most similar to question. topK 0 uses the configured default.
func (s *Service) Search(ctx context.Context, userID, question string, topK int, sourceID string) ([]schema.RetrievedChunk, error) {
	if topK == 0 {
		topK = s.settings.TopK
	}
	return s.retrieval.Run(ctx, userID, question, topK, sourceID)
}

// Query answers question from the user's archive, using the session's earlier turns as context.
func (s *Service) Query(ctx context.Context, userID, sessionID, question string, topK int, sourceID string) (*QueryResult, error) {
	const op = "query"
	if s.qa == nil {
		return nil, schema.E(schema.KindGeneration, op, "answer generation is not configured", nil)
	}
	chunks, err := s.Search(ctx, userID, question, topK, sourceID)
	if err != nil {
		return nil, err
	}

	var history []models.ChatMessage
	if s.history != nil && sessionID != "" {
		history, err = s.history.Load(ctx, userID, sessionID, s.settings.HistoryLimit)
		if err != nil {
			s.log.Warn(fmt.Sprintf("Failed to load history for session %s: %v", sessionID, err))
			history = nil
		}
	}

	answer, err := s.qa.Run(ctx, question, chunks, history)
	if err != nil {
		return nil, err
	}

	if s.history != nil && sessionID != "" {
		now := time.Now().UTC()
		err := s.history.Append(ctx, userID, sessionID,
			models.ChatMessage{Role: models.RoleUser, Content: question, CreatedAt: now},
			models.ChatMessage{Role: models.RoleAssistant, Content: answer, CreatedAt: now},
		)
		if err != nil {
			s.log.Warn(fmt.Sprintf("Failed to save history for session %s: %v", sessionID, err))
		}
	}

	if chunks == nil {
		chunks = []schema.RetrievedChunk{}
	}
	return &QueryResult{Answer: answer, Sources: chunks}, nil
}
