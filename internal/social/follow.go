package social

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/llm"
	"OpenAgent-Chain/pkg/logger"
)

// defaultFollowThreshold 是关注判定的默认分数线，严格大于才关注。
const defaultFollowThreshold = 0.98

// FollowDecision 是模型对单个账号的关注判断。字段用指针建模，
// 缺失必需字段视为不可重试的格式错误。
type FollowDecision struct {
	Username *string  `json:"username"`
	Score    *float64 `json:"score"`
}

// ParseFollowDecisions 把模型输出解析为关注判断列表。
// JSON 语法错误返回可重试的 MALFORMED_DECISION。
func ParseFollowDecisions(text string) ([]FollowDecision, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(trimmed), "```"))
	}
	if trimmed == "" {
		return nil, nil
	}

	var decisions []FollowDecision
	if err := json.Unmarshal([]byte(trimmed), &decisions); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeMalformedDecision, err, "解析关注判断失败")
	}
	return decisions, nil
}

// FollowEngine 请求模型对通知中出现的账号打分，并按分数线执行关注。
type FollowEngine struct {
	client    llm.Client
	threshold float64
}

// NewFollowEngine 创建关注引擎。threshold 不为正时使用默认分数线。
func NewFollowEngine(client llm.Client, threshold float64) *FollowEngine {
	if threshold <= 0 {
		threshold = defaultFollowThreshold
	}
	return &FollowEngine{client: client, threshold: threshold}
}

// Decide 请求一次关注判断，返回模型原始文本。
func (e *FollowEngine) Decide(ctx context.Context, posts []string) (string, error) {
	var b strings.Builder
	b.WriteString("You run a social account and decide which users deserve a follow back.\n")
	b.WriteString("Recent notifications mentioning you:\n")
	for _, p := range posts {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\nScore each distinct author between 0 and 1 for how interesting they are to follow.")

	return e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: b.String()},
			{Role: llm.RoleUser, Content: "Respond only with a JSON array of {\"username\": ..., \"score\": ...}."},
		},
		Temperature: 1,
	})
}

// Apply 按分数线执行关注判断。分数必须严格大于分数线才会关注，
// 单个关注失败只记日志不中断；缺失必需字段放弃剩余条目且不重试。
func (e *FollowEngine) Apply(ctx context.Context, client Client, decisions []FollowDecision) error {
	for _, d := range decisions {
		if d.Username == nil {
			return xerrors.New(xerrors.CodeMalformedDecision,
				"关注判断缺少 username 字段", xerrors.WithRetryable(false))
		}
		if d.Score == nil {
			return xerrors.New(xerrors.CodeMalformedDecision,
				"关注判断缺少 score 字段", xerrors.WithRetryable(false))
		}

		if *d.Score <= e.threshold {
			logger.L().Info("分数未过线，不关注",
				"username", *d.Username, "score", *d.Score, "threshold", e.threshold)
			continue
		}
		if err := client.Follow(ctx, *d.Username); err != nil {
			logger.L().Error("关注用户失败", "username", *d.Username, "error", err)
			continue
		}
		logger.L().Info("已关注用户", "username", *d.Username, "score", *d.Score)
	}
	return nil
}
