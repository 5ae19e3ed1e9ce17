package pipeline

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetrievalFixture() (*RetrievalPipeline, *fakeEmbedder, *fakeVectorStore) {
	calls := &callLog{}
	emb := &fakeEmbedder{log: calls}
	store := newFakeVectorStore(calls)
	return NewRetrievalPipeline(emb, store, logger.Discard()), emb, store
}

func TestRetrieval_MovesTextOutAndKeepsOrder(t *testing.T) {
	p, emb, store := newRetrievalFixture()
	store.matches = []schema.Match{
		{ID: "v_chunk_3", Score: 0.91, Metadata: map[string]any{schema.MetaText: "third", schema.MetaSource: "v", schema.MetaSourceType: "video"}},
		{ID: "v_chunk_1", Score: 0.52, Metadata: map[string]any{schema.MetaText: "first", schema.MetaSource: "v", schema.MetaSourceType: "video"}},
	}

	got, err := p.Run(context.Background(), "u1", "what is photosynthesis?", 5, "")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Text)
	assert.Equal(t, float32(0.91), got[0].Score)
	assert.NotContains(t, got[0].Metadata, schema.MetaText)
	assert.Equal(t, "v", got[0].Metadata[schema.MetaSource])
	assert.Equal(t, "first", got[1].Text)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)

	assert.Equal(t, [][]string{{"what is photosynthesis?"}}, emb.inputs)
	require.Len(t, store.queries, 1)
	assert.Equal(t, "user_u1", store.queries[0].namespace)
	assert.Equal(t, 5, store.queries[0].topK)
	assert.Nil(t, store.queries[0].filter, "no filter without a source")

	assert.Contains(t, store.matches[0].Metadata, schema.MetaText, "store-owned metadata is not mutated")
}

func TestRetrieval_SourceFilter(t *testing.T) {
	p, _, store := newRetrievalFixture()

	_, err := p.Run(context.Background(), "u1", "question", 3, "lecture.pdf")
	require.NoError(t, err)

	assert.Equal(t, schema.Filter{schema.MetaSource: "lecture.pdf"}, store.queries[0].filter)
}

func TestRetrieval_EmptyNamespace(t *testing.T) {
	p, _, _ := newRetrievalFixture()

	got, err := p.Run(context.Background(), "nobody", "question", 5, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieval_Failures(t *testing.T) {
	p, emb, store := newRetrievalFixture()

	emb.err = errors.New("rate limited")
	_, err := p.Run(context.Background(), "u1", "question", 5, "")
	assert.True(t, errors.Is(err, schema.ErrEmbedding))
	assert.Empty(t, store.queries)

	emb.err = nil
	store.queryErr = errors.New("index down")
	_, err = p.Run(context.Background(), "u1", "question", 5, "")
	assert.True(t, errors.Is(err, schema.ErrVectorStore))
}

func TestRetrieval_ValidatesInput(t *testing.T) {
	p, emb, _ := newRetrievalFixture()

	_, err := p.Run(context.Background(), "u1", "question", 0, "")
	assert.True(t, errors.Is(err, schema.ErrInvalidInput))
	_, err = p.Run(context.Background(), "u1", "  ", 5, "")
	assert.True(t, errors.Is(err, schema.ErrInvalidInput))
	assert.Empty(t, emb.inputs)
}
