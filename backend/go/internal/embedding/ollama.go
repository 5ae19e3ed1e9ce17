package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const (
	defaultOllamaHost = "http://localhost:11434"
	// 整篇文稿一次性嵌入，本地模型可能要跑好几分钟。
	ollamaTimeout = 5 * time.Minute
)

// OllamaModel 通过本地 Ollama 服务的 /api/embed 生成嵌入向量。
type OllamaModel struct {
	client *ollama.Client
	model  string
}

// NewOllamaModel 创建 OllamaModel。host 为空时连接本机默认端口。
func NewOllamaModel(model, host string) (*OllamaModel, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	if host = strings.TrimSpace(host); host == "" {
		host = defaultOllamaHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return &OllamaModel{
		client: ollama.NewClient(base, &http.Client{Timeout: ollamaTimeout}),
		model:  model,
	}, nil
}

// Embed 为单个文本生成嵌入向量。
func (m *OllamaModel) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 一次请求嵌入全部文本，结果与输入一一对应且维度一致。
func (m *OllamaModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := m.client.Embed(ctx, &ollama.EmbedRequest{Model: m.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed with model %s: %w", m.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings from ollama, got %d", len(texts), len(resp.Embeddings))
	}
	dim := len(resp.Embeddings[0])
	for i, v := range resp.Embeddings {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("ollama returned embedding %d with dimension %d, expected %d", i, len(v), dim)
		}
	}
	return resp.Embeddings, nil
}
