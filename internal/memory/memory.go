package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/llm"

	"github.com/google/uuid"
)

// Record 是一条长期记忆：一段文本、它的向量表示和显著性分数。
type Record struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"embedding"`
	Significance float64   `json:"significance"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store 定义长期记忆的持久化契约，由 storage 层的各驱动实现。
type Store interface {
	// AppendMemory 追加一条记忆。
	AppendMemory(ctx context.Context, record Record) error
	// RecentMemories 返回最近的至多 limit 条记忆，新的在前。
	RecentMemories(ctx context.Context, limit int) ([]Record, error)
}

// candidatePool 是做相关性检索时从存储拉取的候选窗口大小。
const candidatePool = 200

// Engine 负责短期记忆生成、向量化和长期记忆检索。
type Engine struct {
	client   llm.Client
	embedder llm.Embedder
	store    Store
}

// NewEngine 创建记忆引擎。
func NewEngine(client llm.Client, embedder llm.Embedder, store Store) *Engine {
	return &Engine{client: client, embedder: embedder, store: store}
}

// Summarize 把本轮看到的帖子与通知压缩成一段短期记忆。
func (e *Engine) Summarize(ctx context.Context, recentPosts, notifications []string) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize the observations below into a short first-person memory, a few sentences at most.\n")
	b.WriteString("\nYour recent posts:\n")
	for _, p := range recentPosts {
		b.WriteString("- " + p + "\n")
	}
	b.WriteString("\nNew notifications:\n")
	for _, n := range notifications {
		b.WriteString("- " + n + "\n")
	}

	return e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: b.String()},
			{Role: llm.RoleUser, Content: "Respond only with the memory text."},
		},
	})
}

// Embed 把文本编码为向量。
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.Embed(ctx, text)
}

// Relevant 返回与给定向量最相近的至多 topK 条长期记忆。
// 候选集取自最近的记忆窗口，按余弦相似度降序。
func (e *Engine) Relevant(ctx context.Context, embedding []float32, topK int) ([]Record, error) {
	if topK <= 0 {
		topK = 5
	}

	candidates, err := e.store.RecentMemories(ctx, candidatePool)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取长期记忆失败")
	}

	type scored struct {
		record Record
		score  float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{record: c, score: Cosine(embedding, c.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	results := make([]Record, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, r.record)
	}
	return results, nil
}

// Remember 持久化一条新的长期记忆。
func (e *Engine) Remember(ctx context.Context, content string, embedding []float32, significance float64) error {
	record := Record{
		ID:           uuid.NewString(),
		Content:      content,
		Embedding:    embedding,
		Significance: significance,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.store.AppendMemory(ctx, record); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入长期记忆失败")
	}
	return nil
}

// Cosine 计算两个向量的余弦相似度。维度不一致或零向量返回 0。
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
