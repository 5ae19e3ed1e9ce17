package vectorstore

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/database/milvus"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMilvus struct {
	upserted  []entity.Column
	deleteExp string
	searchExp string
	topK      int
	results   []client.SearchResult
	err       error
}

func (f *fakeMilvus) Upsert(_ context.Context, _ string, _ string, columns ...entity.Column) (entity.Column, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserted = columns
	return columns[0], nil
}

func (f *fakeMilvus) Delete(_ context.Context, _ string, _ string, expr string) error {
	f.deleteExp = expr
	return f.err
}

func (f *fakeMilvus) Search(_ context.Context, _ string, _ []string, expr string, _ []string, _ []entity.Vector, _ string, _ entity.MetricType, topK int, _ entity.SearchParam, _ ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.searchExp = expr
	f.topK = topK
	return f.results, f.err
}

func newTestMilvusStore(api *fakeMilvus, metric entity.MetricType) *MilvusStore {
	return &MilvusStore{
		log:         logger.Discard(),
		client:      api,
		collection:  "archive_chunks",
		vectorField: "embedding",
		metric:      metric,
		searchParam: func(int) (entity.SearchParam, error) { return entity.NewIndexAUTOINDEXSearchParam(1) },
	}
}

func TestBuildExpr(t *testing.T) {
	expr, err := buildExpr("user_u1", nil)
	require.NoError(t, err)
	assert.Equal(t, `namespace == "user_u1"`, expr)

	expr, err = buildExpr("user_u1", schema.Filter{schema.MetaSourceType: "pdf", schema.MetaSource: `a "quoted".pdf`})
	require.NoError(t, err)
	assert.Equal(t, `namespace == "user_u1" and source == "a \"quoted\".pdf" and source_type == "pdf"`, expr)

	_, err = buildExpr("user_u1", schema.Filter{"text": "x"})
	assert.Error(t, err)
}

func TestMilvusStore_UpsertBuildsColumns(t *testing.T) {
	api := &fakeMilvus{}
	s := newTestMilvusStore(api, entity.COSINE)

	n, err := s.Upsert(context.Background(), "user_u1", []schema.VectorRecord{
		{ID: "v_chunk_0", Values: []float32{1, 0}, Metadata: map[string]any{
			schema.MetaUserID: "u1", schema.MetaSource: "v", schema.MetaSourceType: "video",
			schema.MetaDisplayName: "Intro Lecture", schema.MetaText: "hello", schema.MetaStart: 1.5, schema.MetaEnd: 4.0,
		}},
		{ID: "v_chunk_1", Values: []float32{0, 1}, Metadata: map[string]any{schema.MetaText: "world"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, api.upserted, 10)
	assert.Equal(t, milvus.FieldID, api.upserted[0].Name())
	ns, _ := api.upserted[1].GetAsString(1)
	assert.Equal(t, "user_u1", ns)
	assert.Equal(t, milvus.FieldDisplayName, api.upserted[5].Name())
	name, _ := api.upserted[5].GetAsString(0)
	assert.Equal(t, "Intro Lecture", name)
	text, _ := api.upserted[6].GetAsString(1)
	assert.Equal(t, "world", text)
	start, _ := api.upserted[7].GetAsDouble(0)
	assert.Equal(t, 1.5, start)

	vectors, ok := api.upserted[9].(*entity.ColumnFloatVector)
	require.True(t, ok)
	assert.Equal(t, "embedding", vectors.Name())
	assert.Equal(t, 2, vectors.Dim())
}

func TestMilvusStore_UpsertRejectsMixedDimensions(t *testing.T) {
	s := newTestMilvusStore(&fakeMilvus{}, entity.COSINE)

	_, err := s.Upsert(context.Background(), "ns", []schema.VectorRecord{
		{ID: "a", Values: []float32{1, 0}},
		{ID: "b", Values: []float32{1}},
	})
	assert.Error(t, err)
}

func TestMilvusStore_QueryMapsResults(t *testing.T) {
	api := &fakeMilvus{results: []client.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar(milvus.FieldID, []string{"b", "a"}),
		Fields: client.ResultSet{
			entity.NewColumnVarChar(milvus.FieldSource, []string{"s", "s"}),
			entity.NewColumnVarChar(milvus.FieldDisplayName, []string{"Bees", "Ays"}),
			entity.NewColumnVarChar(milvus.FieldText, []string{"bee", "ay"}),
			entity.NewColumnDouble(milvus.FieldStart, []float64{10, 0}),
		},
		Scores: []float32{0.5, 2.0},
	}}}
	s := newTestMilvusStore(api, entity.L2)

	matches, err := s.Query(context.Background(), "user_u1", []float32{1, 0}, 2, schema.Filter{schema.MetaSource: "s"})
	require.NoError(t, err)

	assert.Equal(t, `namespace == "user_u1" and source == "s"`, api.searchExp)
	assert.Equal(t, 2, api.topK)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].ID, "smaller L2 distance ranks first")
	assert.InDelta(t, 1/1.5, matches[0].Score, 1e-6)
	assert.Equal(t, "bee", matches[0].Metadata[schema.MetaText])
	assert.Equal(t, "Bees", matches[0].Metadata[schema.MetaDisplayName])
	assert.Equal(t, 10.0, matches[0].Metadata[schema.MetaStart])
}

func TestMilvusStore_Delete(t *testing.T) {
	api := &fakeMilvus{}
	s := newTestMilvusStore(api, entity.COSINE)
	ctx := context.Background()

	assert.Error(t, s.Delete(ctx, "user_u1", schema.DeleteRequest{}))
	assert.Empty(t, api.deleteExp)

	require.NoError(t, s.Delete(ctx, "user_u1", schema.DeleteRequest{DeleteAll: true}))
	assert.Equal(t, `namespace == "user_u1"`, api.deleteExp)

	require.NoError(t, s.Delete(ctx, "user_u1", schema.DeleteRequest{Filter: schema.Filter{schema.MetaSource: "x.pdf"}}))
	assert.Equal(t, `namespace == "user_u1" and source == "x.pdf"`, api.deleteExp)

	api.err = errors.New("timeout")
	assert.Error(t, s.Delete(ctx, "user_u1", schema.DeleteRequest{DeleteAll: true}))
}
