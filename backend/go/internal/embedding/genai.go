package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// googleBatchLimit 是 BatchEmbedContents 单次请求允许的最大文本数。
const googleBatchLimit = 100

// GoogleModel 是一个用于 Google GenAI Embedding API 的客户端。
type GoogleModel struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

// NewGoogleModel 创建并返回一个新的 GoogleModel 客户端实例。
//
// 参数:
//
//	ctx: 用于创建 GenAI 客户端的上下文。
//	apiKey: Google GenAI 的 API 密钥。
//	modelName: 要使用的 Embedding 模型名称。
//
// 返回值:
//
//	*GoogleModel: 新创建的 GoogleModel 客户端实例。
//	error: 如果无法创建 GenAI 客户端，则返回错误。
func NewGoogleModel(ctx context.Context, apiKey string, modelName string) (*GoogleModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GoogleModel{
		client: client,
		model:  client.EmbeddingModel(modelName),
	}, nil
}

// Embed 为单个文本生成嵌入向量。
func (m *GoogleModel) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := m.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return res.Embedding.Values, nil
}

// EmbedBatch 为一批文本生成嵌入向量。
//
// 超过单次请求上限的输入会被拆分为多个请求，任一请求失败则整体失败。
func (m *GoogleModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += googleBatchLimit {
		end := min(start+googleBatchLimit, len(texts))

		// 创建一个新的批量嵌入请求。
		batch := m.model.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		res, err := m.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch embed texts %d-%d: %w", start, end, err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("batch embed texts %d-%d: got %d embeddings", start, end, len(res.Embeddings))
		}
		for _, emb := range res.Embeddings {
			embeddings = append(embeddings, emb.Values)
		}
	}
	return embeddings, nil
}

// Close 释放底层的 GenAI 客户端。
func (m *GoogleModel) Close() error {
	return m.client.Close()
}
