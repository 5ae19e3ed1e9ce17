package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 Generator 接口的结构体，用于与 Gemini API 交互。
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel // Gemini 生成模型实例。
}

// NewGemini 创建一个新的 Gemini 客户端。
//
// 参数:
//
//	ctx: 上下文，用于控制客户端的生命周期。
//	model: 要使用的 Gemini 模型名称。
//	apiKey: Gemini API 密钥。
//
// 返回值:
//
//	*Gemini: 新创建的 Gemini 客户端实例。
//	error: 如果无法创建 GenAI 客户端，则返回错误。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	generativeModel := client.GenerativeModel(model)
	// 回答应当贴近检索到的内容，温度设置得较低。
	generativeModel.SetTemperature(0.2)

	return &Gemini{client: client, model: generativeModel}, nil
}

// Generate 发送单轮请求并返回拼接后的文本。
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return textFromGenai(resp)
}

// Close 释放底层的 GenAI 客户端。
func (g *Gemini) Close() error {
	return g.client.Close()
}

// textFromGenai 取第一个候选的所有文本部分。
func textFromGenai(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, cand.FinishReason)
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, cand.FinishReason)
	}
	return text, nil
}
