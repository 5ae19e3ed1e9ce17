package llm

import (
	"AskArchive/backend/go/internal/config"
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse 在模型没有返回任何文本时返回，例如回答被安全策略拦截。
var ErrEmptyResponse = errors.New("llm returned no text")

// Generator 定义了所有大型语言模型客户端必须实现的通用接口。
// 每次调用都是无状态的，对话历史由调用方写入 prompt。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator 是一个工厂函数，根据提供的配置创建并返回一个实现了 Generator 接口的客户端。
func NewGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "gemini", "google":
		if cfg.Gemini.Model == "" {
			return nil, fmt.Errorf("no model configured for gemini provider")
		}
		return NewGemini(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "openai":
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.Host)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
