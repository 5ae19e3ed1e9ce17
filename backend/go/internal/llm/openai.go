package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI 是一个用于 OpenAI 兼容 API 的 LLM 客户端。
type OpenAI struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
}

// NewOpenAI 创建一个新的 OpenAI 客户端。baseURL 为空时使用官方地址。
func NewOpenAI(model, apiKey, baseURL string) (*OpenAI, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate 把 prompt 作为单条用户消息发送。
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.2)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, resp.Choices[0].FinishReason)
	}
	return text, nil
}
