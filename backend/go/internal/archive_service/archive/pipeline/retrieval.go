package pipeline

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
)

// RetrievalPipeline finds the chunks most similar to a question inside one user's namespace.
type RetrievalPipeline struct {
	embedder    interfaces.Embedder
	vectorStore interfaces.VectorStore
	log         *logger.Logger
}

// NewRetrievalPipeline creates a new RetrievalPipeline.
func NewRetrievalPipeline(embedder interfaces.Embedder, vectorStore interfaces.VectorStore, log *logger.Logger) *RetrievalPipeline {
	return &RetrievalPipeline{
		embedder:    embedder,
		vectorStore: vectorStore,
		log:         log,
	}
}

// Run returns up to topK chunks for question, in the order the store ranked them.
// An empty sourceID searches every source of the user.
func (p *RetrievalPipeline) Run(ctx context.Context, userID, question string, topK int, sourceID string) ([]schema.RetrievedChunk, error) {
	const op = "retrieve"
	switch {
	case strings.TrimSpace(userID) == "":
		return nil, schema.E(schema.KindInvalidInput, op, "user id is required", nil)
	case strings.TrimSpace(question) == "":
		return nil, schema.E(schema.KindInvalidInput, op, "question is required", nil)
	case topK <= 0:
		return nil, schema.E(schema.KindInvalidInput, op, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}
	namespace := schema.Namespace(userID)
	p.log.Info(fmt.Sprintf("Starting retrieval for user %s (top_k=%d, source=%q)", userID, topK, sourceID))

	// 1. Embed the question
	vectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to embed question: %v", err))
		return nil, schema.E(schema.KindEmbedding, op, "failed to embed question", err)
	}
	if len(vectors) != 1 {
		return nil, schema.E(schema.KindEmbedding, op, fmt.Sprintf("expected 1 question vector, got %d", len(vectors)), nil)
	}

	// 2. Narrow to one source if asked
	var filter schema.Filter
	if sourceID != "" {
		filter = schema.Filter{schema.MetaSource: sourceID}
	}

	// 3. Query the user's namespace
	matches, err := p.vectorStore.Query(ctx, namespace, vectors[0], topK, filter)
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to query vector store: %v", err))
		return nil, schema.E(schema.KindVectorStore, op, "failed to query vector store", err)
	}

	// 4. Lift the chunk text out of the metadata
	results := make([]schema.RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		meta := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			if k != schema.MetaText {
				meta[k] = v
			}
		}
		text, ok := m.Metadata[schema.MetaText].(string)
		if !ok {
			p.log.Warn(fmt.Sprintf("Match %s has no text in its metadata", m.ID))
		}
		results = append(results, schema.RetrievedChunk{Text: text, Metadata: meta, Score: m.Score})
	}

	p.log.Info(fmt.Sprintf("Retrieved %d chunks for user %s", len(results), userID))
	return results, nil
}
