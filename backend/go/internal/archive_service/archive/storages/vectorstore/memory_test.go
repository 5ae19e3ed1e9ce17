package vectorstore

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, source string, values ...float32) schema.VectorRecord {
	return schema.VectorRecord{
		ID:       id,
		Values:   values,
		Metadata: map[string]any{schema.MetaSource: source, schema.MetaText: id},
	}
}

func TestMemoryStore_QueryRanksByCosine(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.Upsert(ctx, "user_u1", []schema.VectorRecord{
		rec("a", "s1", 1, 0),
		rec("b", "s1", 0.7, 0.7),
		rec("c", "s2", 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	matches, err := s.Query(ctx, "user_u1", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "a", matches[0].Metadata[schema.MetaText])
}

func TestMemoryStore_FilterAndNamespaceIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.Upsert(ctx, "user_u1", []schema.VectorRecord{rec("a", "s1", 1, 0), rec("c", "s2", 1, 0)})
	_, _ = s.Upsert(ctx, "user_u2", []schema.VectorRecord{rec("x", "s1", 1, 0)})

	matches, err := s.Query(ctx, "user_u1", []float32{1, 0}, 10, schema.Filter{schema.MetaSource: "s2"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c", matches[0].ID)

	empty, err := s.Query(ctx, "user_nobody", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.Upsert(ctx, "ns", []schema.VectorRecord{rec("a", "s1", 1, 0)})
	_, _ = s.Upsert(ctx, "ns", []schema.VectorRecord{rec("a", "s1", 0, 1)})

	assert.Equal(t, 1, s.Count("ns"))
	matches, _ := s.Query(ctx, "ns", []float32{0, 1}, 1, nil)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.Upsert(ctx, "ns", []schema.VectorRecord{rec("a", "s1", 1, 0), rec("b", "s2", 1, 0)})

	err := s.Delete(ctx, "ns", schema.DeleteRequest{})
	assert.Error(t, err, "unfiltered delete needs DeleteAll")
	assert.Equal(t, 2, s.Count("ns"))

	require.NoError(t, s.Delete(ctx, "ns", schema.DeleteRequest{Filter: schema.Filter{schema.MetaSource: "s1"}}))
	assert.Equal(t, 1, s.Count("ns"))

	require.NoError(t, s.Delete(ctx, "ns", schema.DeleteRequest{DeleteAll: true}))
	assert.Zero(t, s.Count("ns"))

	require.NoError(t, s.Delete(ctx, "missing", schema.DeleteRequest{DeleteAll: true}))
}

func TestMemoryStore_ReturnedMetadataIsACopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.Upsert(ctx, "ns", []schema.VectorRecord{rec("a", "s1", 1, 0)})

	matches, _ := s.Query(ctx, "ns", []float32{1, 0}, 1, nil)
	delete(matches[0].Metadata, schema.MetaText)

	again, _ := s.Query(ctx, "ns", []float32{1, 0}, 1, nil)
	assert.Equal(t, "a", again[0].Metadata[schema.MetaText])
}
