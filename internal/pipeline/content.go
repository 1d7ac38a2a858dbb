package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/llm"
	"OpenAgent-Chain/internal/memory"
	"OpenAgent-Chain/internal/storage"

	"github.com/google/uuid"
)

// composePost 根据人格设定、短期记忆和相关长期记忆创作一条新帖子。
func (p *Pipeline) composePost(ctx context.Context, summary string, related []memory.Record, postTexts, externalTexts []string) (string, error) {
	var b strings.Builder
	b.WriteString(p.persona.Preamble(summary))
	b.WriteString("\n\nWhat just happened:\n")
	b.WriteString(summary)

	if len(related) > 0 {
		b.WriteString("\n\nThings you remember:\n")
		for _, rec := range related {
			b.WriteString("- " + rec.Content + "\n")
		}
	}
	if len(postTexts) > 0 {
		b.WriteString("\nYour recent posts (do not repeat yourself):\n")
		for _, text := range postTexts {
			b.WriteString("- " + text + "\n")
		}
	}
	if len(externalTexts) > 0 {
		b.WriteString("\nWhat you saw on the platform:\n")
		for _, text := range externalTexts {
			b.WriteString("- " + text + "\n")
		}
	}

	return p.composer.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: b.String()},
			{Role: llm.RoleUser, Content: "Write your next post. Respond only with the post text."},
		},
		Temperature: 1,
		TopP:        0.95,
	})
}

var scorePattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// scoreSignificance 请模型给帖子打 0–10 的显著性分，解析失败时
// 在重试预算内重新请求。
func (p *Pipeline) scoreSignificance(ctx context.Context, content string) (float64, error) {
	var score float64
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		raw, err := p.composer.Complete(ctx, llm.Request{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "You rate social media posts for significance on a scale from 0 to 10. " +
					"0 is pure noise, 10 is unmissable."},
				{Role: llm.RoleUser, Content: fmt.Sprintf("Rate this post. Respond only with a single number.\n\n%s", content)},
			},
		})
		if err != nil {
			return err
		}
		score, err = parseScore(raw)
		return err
	})
	return score, err
}

func parseScore(raw string) (float64, error) {
	match := scorePattern.FindString(raw)
	if match == "" {
		return 0, xerrors.New(xerrors.CodeMalformedDecision, "打分响应中没有数字: "+raw)
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeMalformedDecision, err, "解析显著性分数失败")
	}
	if score < 0 || score > 10 {
		return 0, xerrors.New(xerrors.CodeMalformedDecision,
			fmt.Sprintf("显著性分数越界: %v", score))
	}
	return score, nil
}

func newPostRecord(accountID int64, platformID, content string, score float64) storage.PostRecord {
	return storage.PostRecord{
		ID:           uuid.NewString(),
		PlatformID:   platformID,
		AccountID:    accountID,
		Content:      content,
		Significance: score,
		CreatedAt:    time.Now().UTC(),
	}
}
