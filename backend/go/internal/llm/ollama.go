package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于 Ollama API 的 LLM 客户端。
type Ollama struct {
	client *olla.Client // Ollama 客户端实例。
	model  string       // 要使用的模型名称。
}

// NewOllama 创建一个新的 Ollama 客户端。
//
// 参数:
//
//	model: 要使用的模型名称。
//	baseURL: Ollama 服务的基准 URL。如果为空，则默认为 "http://localhost:11434"。
//
// 返回值:
//
//	*Ollama: 新创建的 Ollama 客户端实例。
//	error: 如果基准 URL 无效，则返回错误。
func NewOllama(model, baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	return &Ollama{client: olla.NewClient(parsedURL, hc), model: model}, nil
}

// Generate 以非流式方式请求 /api/generate，并返回完整回答。
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var sb strings.Builder

	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp olla.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content with ollama: %w", err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
