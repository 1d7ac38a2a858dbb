package llm

import "context"

// Message 是发送给大模型的一条对话消息。
type Message struct {
	Role    string
	Content string
}

// 对话消息支持的角色。
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Request 描述一次补全请求及其采样参数。
type Request struct {
	Model           string
	Messages        []Message
	Temperature     float32
	TopP            float32
	TopK            int
	PresencePenalty float32
	MaxTokens       int
}

// Client 定义了调用大模型补全接口的统一抽象。
// 返回值是模型的原始文本输出，解析由调用方负责。
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Embedder 将文本编码为向量，供长期记忆检索使用。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
