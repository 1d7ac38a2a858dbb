package transfer

import (
	"encoding/json"
	"strings"

	xerrors "OpenAgent-Chain/internal/errors"

	"github.com/shopspring/decimal"
)

// NoTransferSentinel 是模型拒绝转账时约定返回的哨兵值。
const NoTransferSentinel = "NO_TRANSFER"

// Entry 是决策载荷中的一条转账指令。字段用指针建模，
// 以区分"字段缺失"和"零值"：缺失必需字段属于不可重试的格式错误。
type Entry struct {
	Address *string          `json:"address"`
	Amount  *decimal.Decimal `json:"amount"`
	Token   *string          `json:"token"`
}

// Fields 校验并取出必需字段。地址或金额缺失时返回不可重试的
// MALFORMED_DECISION：此时不应重新请求模型，剩余条目直接放弃。
func (e Entry) Fields() (string, decimal.Decimal, error) {
	if e.Address == nil {
		return "", decimal.Zero, xerrors.New(xerrors.CodeMalformedDecision,
			"决策条目缺少 address 字段", xerrors.WithRetryable(false))
	}
	if e.Amount == nil {
		return "", decimal.Zero, xerrors.New(xerrors.CodeMalformedDecision,
			"决策条目缺少 amount 字段", xerrors.WithRetryable(false))
	}
	return *e.Address, *e.Amount, nil
}

// ParseDecision 把模型输出解析为转账条目。NO_TRANSFER 哨兵和空输出
// 都视为"不转账"，返回空切片；JSON 语法错误返回可重试的
// MALFORMED_DECISION，调用方在重试预算内重新请求模型。
func ParseDecision(text string) ([]Entry, error) {
	trimmed := stripCodeFence(strings.TrimSpace(text))
	if trimmed == "" || trimmed == NoTransferSentinel {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeMalformedDecision, err, "解析决策载荷失败")
	}
	return entries, nil
}

// stripCodeFence 去掉模型偶尔包在 JSON 外面的 markdown 代码块标记。
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
