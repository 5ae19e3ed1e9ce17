package mcp

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/archive_service/service"
	"AskArchive/backend/go/internal/models"
	"context"
	"encoding/json"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchive struct {
	userID   string
	topK     int
	sourceID string
	sources  []*models.IngestionSource
	chunks   []schema.RetrievedChunk
	answer   string
	err      error
}

func (f *fakeArchive) ListSources(_ context.Context, userID string) ([]*models.IngestionSource, error) {
	f.userID = userID
	return f.sources, f.err
}

func (f *fakeArchive) Search(_ context.Context, userID, _ string, topK int, sourceID string) ([]schema.RetrievedChunk, error) {
	f.userID, f.topK, f.sourceID = userID, topK, sourceID
	return f.chunks, f.err
}

func (f *fakeArchive) Query(_ context.Context, userID, _, _ string, topK int, sourceID string) (*service.QueryResult, error) {
	f.userID, f.topK, f.sourceID = userID, topK, sourceID
	if f.err != nil {
		return nil, f.err
	}
	return &service.QueryResult{Answer: f.answer, Sources: f.chunks}, nil
}

func call(args map[string]any) mcpgo.CallToolRequest {
	var req mcpgo.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcpgo.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewTools_RequiresUser(t *testing.T) {
	_, err := NewTools(&fakeArchive{}, " ")
	assert.Error(t, err)

	tools, err := NewTools(&fakeArchive{}, "u1")
	require.NoError(t, err)
	assert.NotNil(t, NewServer(tools))
}

func TestHandleListSources(t *testing.T) {
	fa := &fakeArchive{}
	tools, _ := NewTools(fa, "u1")

	res, err := tools.HandleListSources(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, "The archive is empty.", text(t, res))
	assert.Equal(t, "u1", fa.userID)

	fa.sources = []*models.IngestionSource{{SourceID: "abc12345678", SourceType: models.SourceTypeVideo, DisplayName: "Talk"}}
	res, err = tools.HandleListSources(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, "- [video] Talk (abc12345678)\n", text(t, res))
}

func TestHandleSearch(t *testing.T) {
	fa := &fakeArchive{chunks: []schema.RetrievedChunk{{Text: "hello", Score: 0.5}}}
	tools, _ := NewTools(fa, "u1")

	res, err := tools.HandleSearch(context.Background(), call(map[string]any{
		"question": "what?", "top_k": float64(3), "source_id": "s1",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 3, fa.topK)
	assert.Equal(t, "s1", fa.sourceID)

	var got []schema.RetrievedChunk
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
}

func TestHandleSearch_MissingQuestion(t *testing.T) {
	tools, _ := NewTools(&fakeArchive{}, "u1")
	res, err := tools.HandleSearch(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleAsk_ListsDistinctSources(t *testing.T) {
	fa := &fakeArchive{answer: "Mitochondria.", chunks: []schema.RetrievedChunk{
		{Text: "a", Metadata: map[string]any{schema.MetaSource: "bio.pdf"}},
		{Text: "b", Metadata: map[string]any{schema.MetaSource: "bio.pdf"}},
		{Text: "c", Metadata: map[string]any{schema.MetaSource: "abc12345678"}},
	}}
	tools, _ := NewTools(fa, "u1")

	res, err := tools.HandleAsk(context.Background(), call(map[string]any{"question": "powerhouse?"}))
	require.NoError(t, err)
	assert.Equal(t, "Mitochondria.\n\nSources:\n- bio.pdf\n- abc12345678", text(t, res))
	assert.Equal(t, 0, fa.topK)
}

func TestHandleAsk_ServiceError(t *testing.T) {
	fa := &fakeArchive{err: schema.E(schema.KindGeneration, "query", "no generator configured", nil)}
	tools, _ := NewTools(fa, "u1")

	res, err := tools.HandleAsk(context.Background(), call(map[string]any{"question": "q"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "generation_failure")
}
