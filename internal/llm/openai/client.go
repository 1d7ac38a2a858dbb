package openai

import (
	"context"
	"errors"
	"strings"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	defaultModelName      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-ada-002"
)

// Config 描述了调用 OpenAI 接口所需的信息。
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

// Client 基于官方兼容 SDK 封装补全与向量化能力，
// 用于帖子生成、显著性打分和长期记忆的向量检索。
type Client struct {
	api            *goopenai.Client
	model          string
	embeddingModel goopenai.EmbeddingModel
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}
	embeddingModel := strings.TrimSpace(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	return &Client{
		api:            goopenai.NewClientWithConfig(clientCfg),
		model:          model,
		embeddingModel: goopenai.EmbeddingModel(embeddingModel),
	}, nil
}

// Complete 调用 Chat Completions 并返回首个 choice 的原始文本。
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "补全请求缺少消息")
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:           model,
		Messages:        messages,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		PresencePenalty: req.PresencePenalty,
		MaxTokens:       req.MaxTokens,
	})
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeNetworkFailure, err, "请求 OpenAI 失败")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI 响应中没有有效的 choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("OpenAI 响应内容为空")
	}
	return content, nil
}

// Embed 将文本编码为向量。
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "向量化文本不能为空")
	}

	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "请求向量化接口失败")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("向量化响应为空")
	}
	return resp.Data[0].Embedding, nil
}

var (
	_ llm.Client   = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)
