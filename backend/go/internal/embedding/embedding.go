package embedding

import (
	"AskArchive/backend/go/internal/config"
	"context"
	"fmt"
)

// NewEmdModel 根据配置中的提供商创建并返回一个新的 Embedding 模型实例。
//
// 参数:
//
//	ctx: 用于初始化需要建立连接的客户端。
//	cfg: Embedding 配置，Provider 支持 "gemini"、"openai" 和 "ollama"。
//
// 返回值:
//
//	Embedding: 新创建的 Embedding 模型实例。
//	error: 如果提供商不支持或模型初始化失败，则返回错误。
func NewEmdModel(ctx context.Context, cfg *config.EmbeddingConfig) (Embedding, error) {
	// 根据提供商类型创建相应的 Embedding 模型实例。
	switch ModelType(cfg.Provider) {
	case Google, Gemini:
		return NewGoogleModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	case OpenAI:
		return NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case Ollama:
		return NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.Host)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider) // 如果提供商不支持，返回错误。
	}
}
