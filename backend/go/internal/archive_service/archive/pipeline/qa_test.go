package pipeline

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt_IncludesHistoryContextAndQuestion(t *testing.T) {
	chunks := []schema.RetrievedChunk{
		{Text: "Chloroplasts capture light.", Metadata: map[string]any{
			schema.MetaSource: "bio12345678", schema.MetaDisplayName: "Biology Lecture",
			schema.MetaSourceType: "video", schema.MetaStart: 765.0, schema.MetaEnd: 790.5,
		}},
		{Text: "Glucose is stored as starch.", Metadata: map[string]any{
			schema.MetaSource: "notes.pdf", schema.MetaSourceType: "pdf", schema.MetaStart: 0.0, schema.MetaEnd: 0.0,
		}},
	}
	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}

	prompt := BuildPrompt("Where does photosynthesis happen?", chunks, history)

	assert.Contains(t, prompt, "User: hi\nAssistant: hello\n")
	assert.Contains(t, prompt, "[Biology Lecture, video, 12:45-13:10]\nChloroplasts capture light.\n\n[notes.pdf, pdf]\nGlucose is stored as starch.")
	assert.True(t, strings.HasSuffix(prompt, "USER QUESTION:\nWhere does photosynthesis happen?\n"))
}

func TestBuildPrompt_EmptyHistoryAndContext(t *testing.T) {
	prompt := BuildPrompt("q", nil, nil)

	assert.Contains(t, prompt, "No previous history.")
	assert.Contains(t, prompt, "No matching content was found in the archive.")
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "0:00", Timestamp(-3))
	assert.Equal(t, "0:59", Timestamp(59.9))
	assert.Equal(t, "12:45", Timestamp(765))
	assert.Equal(t, "1:01:01", Timestamp(3661))
}

func TestQAPipeline_Run(t *testing.T) {
	gen := &fakeGenerator{answer: "In the chloroplast [bio101, 12:45]."}
	p := NewQAPipeline(gen, logger.Discard())

	answer, err := p.Run(context.Background(), "where?", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "In the chloroplast [bio101, 12:45].", answer)
	assert.Contains(t, gen.prompt, "where?")

	gen.err = errors.New("safety block")
	_, err = p.Run(context.Background(), "where?", nil, nil)
	assert.True(t, errors.Is(err, schema.ErrGeneration))
}
