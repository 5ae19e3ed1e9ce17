package service

import (
	"AskArchive/backend/go/internal/archive_service/archive/dal"
	"AskArchive/backend/go/internal/archive_service/archive/pipeline"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/archive_service/archive/storages/vectorstore"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// keywordEmbedder maps text onto a few topic axes so that similarity is predictable.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		v := []float32{0.01, 0.01, 0.01}
		if strings.Contains(t, "photo") {
			v[0] = 1
		}
		if strings.Contains(t, "mito") {
			v[1] = 1
		}
		if strings.Contains(t, "kepler") {
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

type stubVideos struct {
	transcripts map[string]*schema.Transcript
}

func (s *stubVideos) Fetch(_ context.Context, ref string) (*schema.Transcript, error) {
	tr, ok := s.transcripts[ref]
	if !ok {
		return nil, schema.E(schema.KindNoTranscript, "fetch", "No transcript found for this video.", nil)
	}
	return tr, nil
}

type stubDocuments struct{}

func (stubDocuments) Extract(_ context.Context, filename string, data []byte) (*schema.Document, error) {
	if !strings.HasPrefix(string(data), "%PDF") {
		return nil, schema.E(schema.KindInvalidInput, "extract", "unsupported file type", nil)
	}
	return &schema.Document{SourceID: filename, DisplayName: filename, Segments: []schema.TextSegment{{Text: string(data[4:])}}}, nil
}

type recordingGenerator struct {
	prompts []string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return fmt.Sprintf("answer %d", len(g.prompts)), nil
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memoryLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, schema.E(schema.KindBusy, "lock", "busy", nil)
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

type memoryHistory struct {
	sessions map[string][]models.ChatMessage
	cleared  []string
}

func (h *memoryHistory) Load(_ context.Context, userID, sessionID string, limit int) ([]models.ChatMessage, error) {
	msgs := h.sessions[userID+":"+sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (h *memoryHistory) Append(_ context.Context, userID, sessionID string, msgs ...models.ChatMessage) error {
	h.sessions[userID+":"+sessionID] = append(h.sessions[userID+":"+sessionID], msgs...)
	return nil
}

func (h *memoryHistory) ClearUser(_ context.Context, userID string) error {
	h.cleared = append(h.cleared, userID)
	for k := range h.sessions {
		if strings.HasPrefix(k, userID+":") {
			delete(h.sessions, k)
		}
	}
	return nil
}

type memoryUploads struct {
	objects map[string][]byte
}

func (u *memoryUploads) Put(_ context.Context, userID, sourceID, _ string, data []byte) error {
	u.objects[userID+"/"+sourceID] = data
	return nil
}

func (u *memoryUploads) Delete(_ context.Context, userID, sourceID string) error {
	delete(u.objects, userID+"/"+sourceID)
	return nil
}

func (u *memoryUploads) DeleteUser(_ context.Context, userID string) (int, error) {
	n := 0
	for k := range u.objects {
		if strings.HasPrefix(k, userID+"/") {
			delete(u.objects, k)
			n++
		}
	}
	return n, nil
}

type harness struct {
	svc     *Service
	store   *vectorstore.MemoryStore
	gen     *recordingGenerator
	locker  *memoryLocker
	history *memoryHistory
	uploads *memoryUploads
}

func newHarness(t *testing.T, settings Settings, withQA bool) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	sources := dal.NewSourceDAL(db)
	require.NoError(t, sources.Migrate(context.Background()))

	log := logger.Discard()
	store := vectorstore.NewMemoryStore()
	emb := keywordEmbedder{}
	h := &harness{
		store:   store,
		gen:     &recordingGenerator{},
		locker:  &memoryLocker{held: map[string]bool{}},
		history: &memoryHistory{sessions: map[string][]models.ChatMessage{}},
		uploads: &memoryUploads{objects: map[string][]byte{}},
	}
	opts := []Option{WithLocker(h.locker), WithHistory(h.history), WithUploads(h.uploads)}
	if withQA {
		opts = append(opts, WithQA(pipeline.NewQAPipeline(h.gen, log)))
	}
	videos := &stubVideos{transcripts: map[string]*schema.Transcript{
		"https://youtu.be/bio12345678": {
			VideoID: "bio12345678", Title: "Biology Lecture",
			Segments: []schema.TextSegment{
				{Text: "Photosynthesis happens in the chloroplast.", Start: 0, Duration: 5},
				{Text: "Mitochondria produce ATP.", Start: 765, Duration: 4},
			},
		},
		"space123456": {
			VideoID: "space123456", Title: "Planets",
			Segments: []schema.TextSegment{{Text: "Kepler described planetary orbits.", Start: 10, Duration: 3}},
		},
		"short123456": {
			VideoID: "short123456", Title: "Short",
			Segments: []schema.TextSegment{{Text: "hello", Start: 0, Duration: 2}, {Text: "world", Start: 2, Duration: 2}, {Text: "foo bar baz", Start: 4, Duration: 3}},
		},
	}}
	h.svc = New(
		sources,
		pipeline.NewIngestionPipeline(emb, store, sources, log),
		pipeline.NewDeletionPipeline(store, sources, nil, log),
		pipeline.NewRetrievalPipeline(emb, store, log),
		videos,
		stubDocuments{},
		settings,
		log,
		opts...,
	)
	return h
}

func TestService_IngestListQuery(t *testing.T) {
	h := newHarness(t, Settings{MaxChars: 40, OverlapChars: 0, HistoryLimit: 10}, true)
	ctx := context.Background()

	res, err := h.svc.IngestVideo(ctx, "u1", "https://youtu.be/bio12345678", schema.ChunkOptions{})
	require.NoError(t, err)
	assert.Equal(t, schema.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.TotalCount)

	sources, err := h.svc.ListSources(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "bio12345678", sources[0].SourceID)
	assert.Equal(t, "Biology Lecture", sources[0].DisplayName)
	assert.Equal(t, models.SourceTypeVideo, sources[0].SourceType)

	out, err := h.svc.Query(ctx, "u1", "s1", "Where are mitochondria discussed?", 1, "")
	require.NoError(t, err)
	assert.Equal(t, "answer 1", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Contains(t, out.Sources[0].Text, "Mitochondria")
	assert.Contains(t, h.gen.prompts[0], "Mitochondria produce ATP.")
	assert.Contains(t, h.gen.prompts[0], "[Biology Lecture, video, 12:45-12:49]", "cited by title, not video id")

	_, err = h.svc.Query(ctx, "u1", "s1", "And photosynthesis?", 1, "")
	require.NoError(t, err)
	assert.Contains(t, h.gen.prompts[1], "Where are mitochondria discussed?", "second turn sees the first")
	assert.Len(t, h.history.sessions["u1:s1"], 4)
}

func TestService_IngestUsesDefaultChunking(t *testing.T) {
	h := newHarness(t, Settings{MaxChars: 10}, false)

	res, err := h.svc.IngestVideo(context.Background(), "u1", "short123456", schema.ChunkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)

	res, err = h.svc.IngestVideo(context.Background(), "u2", "short123456", schema.ChunkOptions{MaxChars: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
}

func TestService_ExplicitZeroOverlapIsHonoured(t *testing.T) {
	h := newHarness(t, Settings{MaxChars: 2000, OverlapChars: 300}, false)

	res, err := h.svc.IngestVideo(context.Background(), "u1", "short123456",
		schema.ChunkOptions{MaxChars: intPtr(12), OverlapChars: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)

	second, ok := h.store.Get(schema.Namespace("u1"), "short123456_chunk_1")
	require.True(t, ok)
	assert.Equal(t, "foo bar baz", second.Metadata[schema.MetaText])
}

func TestService_AbsentOverlapUsesConfiguredDefault(t *testing.T) {
	h := newHarness(t, Settings{MaxChars: 2000, OverlapChars: 300}, false)

	_, err := h.svc.IngestVideo(context.Background(), "u1", "short123456", schema.ChunkOptions{MaxChars: intPtr(12)})
	require.NoError(t, err)

	second, ok := h.store.Get(schema.Namespace("u1"), "short123456_chunk_1")
	require.True(t, ok)
	assert.Equal(t, "hello world foo bar baz", second.Metadata[schema.MetaText])
}

func intPtr(v int) *int { return &v }

func TestService_DuplicateVideo(t *testing.T) {
	h := newHarness(t, Settings{}, false)
	ctx := context.Background()

	_, err := h.svc.IngestVideo(ctx, "u1", "space123456", schema.ChunkOptions{})
	require.NoError(t, err)
	_, err = h.svc.IngestVideo(ctx, "u1", "space123456", schema.ChunkOptions{})
	assert.True(t, errors.Is(err, schema.ErrDuplicateSource))
	assert.Empty(t, h.locker.held, "lock released after each attempt")
}

func TestService_BusySourceIsRejected(t *testing.T) {
	h := newHarness(t, Settings{}, false)
	h.locker.held["archive:ingest:u1:space123456"] = true

	_, err := h.svc.IngestVideo(context.Background(), "u1", "space123456", schema.ChunkOptions{})
	assert.True(t, errors.Is(err, schema.ErrBusy))
	assert.Zero(t, h.store.Count(schema.Namespace("u1")))
}

func TestService_ExtractorErrorsPassThrough(t *testing.T) {
	h := newHarness(t, Settings{}, false)

	_, err := h.svc.IngestVideo(context.Background(), "u1", "unknown", schema.ChunkOptions{})
	assert.True(t, errors.Is(err, schema.ErrNoTranscript))

	_, err = h.svc.IngestPDF(context.Background(), "u1", "notes.txt", []byte("plain"), schema.ChunkOptions{})
	assert.True(t, errors.Is(err, schema.ErrInvalidInput))
}

func TestService_PDFUploadLifecycle(t *testing.T) {
	h := newHarness(t, Settings{MaxUploadBytes: 64}, false)
	ctx := context.Background()

	_, err := h.svc.IngestPDF(ctx, "u1", "big.pdf", []byte("%PDF"+strings.Repeat("x", 100)), schema.ChunkOptions{})
	assert.True(t, errors.Is(err, schema.ErrInvalidInput))

	res, err := h.svc.IngestPDF(ctx, "u1", "cells.pdf", []byte("%PDFMitochondria are organelles."), schema.ChunkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Contains(t, h.uploads.objects, "u1/cells.pdf")

	sources, err := h.svc.ListSources(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, models.SourceTypePDF, sources[0].SourceType)

	del, err := h.svc.DeleteSource(ctx, "u1", "cells.pdf")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusSuccess, del.Status)
	assert.Empty(t, h.uploads.objects)
}

func TestService_DeleteUserWipesEverything(t *testing.T) {
	h := newHarness(t, Settings{HistoryLimit: 10}, true)
	ctx := context.Background()

	_, err := h.svc.IngestVideo(ctx, "u1", "space123456", schema.ChunkOptions{})
	require.NoError(t, err)
	_, err = h.svc.IngestPDF(ctx, "u1", "cells.pdf", []byte("%PDFMitochondria."), schema.ChunkOptions{})
	require.NoError(t, err)
	_, err = h.svc.IngestVideo(ctx, "u2", "space123456", schema.ChunkOptions{})
	require.NoError(t, err)
	_, err = h.svc.Query(ctx, "u1", "s1", "kepler?", 2, "")
	require.NoError(t, err)

	res, err := h.svc.DeleteUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Removed)
	assert.Equal(t, "Archive wiped. Removed 2 sources for user_u1.", res.Message)

	sources, err := h.svc.ListSources(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, sources)
	chunks, err := h.svc.Search(ctx, "u1", "kepler", 5, "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, h.uploads.objects)
	assert.Equal(t, []string{"u1"}, h.history.cleared)

	other, err := h.svc.Search(ctx, "u2", "kepler", 5, "")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other users are untouched")
}

func TestService_SearchDefaultsAndFilter(t *testing.T) {
	h := newHarness(t, Settings{MaxChars: 40, TopK: 1}, false)
	ctx := context.Background()

	_, err := h.svc.IngestVideo(ctx, "u1", "https://youtu.be/bio12345678", schema.ChunkOptions{})
	require.NoError(t, err)
	_, err = h.svc.IngestVideo(ctx, "u1", "space123456", schema.ChunkOptions{})
	require.NoError(t, err)

	chunks, err := h.svc.Search(ctx, "u1", "kepler", 0, "")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "space123456", chunks[0].Metadata[schema.MetaSource])

	chunks, err = h.svc.Search(ctx, "u1", "kepler", 5, "bio12345678")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, "bio12345678", c.Metadata[schema.MetaSource])
	}
}

func TestService_QueryWithoutGenerator(t *testing.T) {
	h := newHarness(t, Settings{}, false)

	_, err := h.svc.Query(context.Background(), "u1", "s1", "anything", 5, "")
	assert.True(t, errors.Is(err, schema.ErrGeneration))
}

func TestService_RequiresUser(t *testing.T) {
	h := newHarness(t, Settings{}, false)
	ctx := context.Background()

	_, err := h.svc.IngestVideo(ctx, " ", "space123456", schema.ChunkOptions{})
	assert.True(t, errors.Is(err, schema.ErrInvalidInput))
	_, err = h.svc.ListSources(ctx, "")
	assert.True(t, errors.Is(err, schema.ErrInvalidInput))
}
