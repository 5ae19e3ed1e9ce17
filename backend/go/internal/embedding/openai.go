package embedding

import (
	"context"
	"fmt"
	"sort"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIModel 是一个用于 OpenAI 兼容 API 的 Embedding 模型客户端。
type OpenAIModel struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
}

// NewOpenAIModel 创建一个新的 OpenAIModel 客户端。
//
// 参数:
//
//	apiKey: OpenAI 的 API 密钥。
//	modelName: 要使用的模型名称。
//	baseURL: 兼容接口的地址，为空时使用官方地址。
//
// 返回值:
//
//	*OpenAIModel: 新创建的 OpenAIModel 客户端实例。
//	error: 如果创建客户端失败，则返回错误。
func NewOpenAIModel(apiKey, modelName, baseURL string) (*OpenAIModel, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIModel{client: openai.NewClientWithConfig(config), model: modelName}, nil
}

// Embed 使用 OpenAI API 为单个文本生成嵌入向量。
func (m *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch 使用 OpenAI API 为一批文本生成嵌入向量。
//
// 返回的数据按 Index 排序后再输出，保证与输入顺序一致。
func (m *OpenAIModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(m.model),
	}

	resp, err := m.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}
