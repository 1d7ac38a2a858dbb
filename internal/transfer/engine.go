package transfer

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"OpenAgent-Chain/internal/llm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// decisionSampling 是转账决策调用固定使用的采样参数。
// 决策需要一定的随机性，但 top_k 收紧到 40 避免输出彻底跑偏。
var decisionSampling = llm.Request{
	Temperature:     1,
	TopP:            0.95,
	TopK:            40,
	PresencePenalty: 0,
}

// Engine 负责构造决策提示词并请求模型给出转账判断。
// 它只返回模型的原始文本，解析和执行由调用方串联，
// 这样重试循环可以把"重新决策"和"重新解析"绑在一起。
type Engine struct {
	client llm.Client
}

// NewEngine 创建决策引擎。
func NewEngine(client llm.Client) *Engine {
	return &Engine{client: client}
}

// DecideNative 针对原生币转账请求一次决策。posts 是触发本轮判断的
// 不可信外部文本，candidates 是从中提取出的地址与名称候选。
func (e *Engine) DecideNative(ctx context.Context, posts, candidates []string, balance decimal.Decimal) (string, error) {
	req := decisionSampling
	req.Messages = []llm.Message{
		{Role: llm.RoleSystem, Content: buildDecisionPrompt(posts, candidates, balance.String()+" ETH", "")},
		{Role: llm.RoleUser, Content: "Respond only with the wallet address(es) and amount(s) you would like to send to, " +
			"as a JSON array of {\"address\": ..., \"amount\": ...}. If you decide not to transfer, respond with '" + NoTransferSentinel + "'."},
	}
	return e.client.Complete(ctx, req)
}

// DecideToken 针对 ERC-20 代币转账请求一次决策，提示词额外携带
// 代币合约地址与基础单位余额。
func (e *Engine) DecideToken(ctx context.Context, posts, candidates []string, tokenBalance *big.Int, token common.Address) (string, error) {
	balance := "0"
	if tokenBalance != nil {
		balance = tokenBalance.String()
	}

	req := decisionSampling
	req.Messages = []llm.Message{
		{Role: llm.RoleSystem, Content: buildDecisionPrompt(posts, candidates, balance+" base units", token.Hex()) +
			"\nYou are deciding whether to transfer ERC20 tokens. Consider token balance and transaction costs."},
		{Role: llm.RoleUser, Content: "Respond only with the wallet address(es) and token amount(s) you would like to send to, " +
			"as a JSON array of {\"address\": ..., \"amount\": ..., \"token\": ...}. If you decide not to transfer, respond with '" + NoTransferSentinel + "'."},
	}
	return e.client.Complete(ctx, req)
}

func buildDecisionPrompt(posts, candidates []string, balance, token string) string {
	var b strings.Builder
	b.WriteString("You control a crypto wallet and decide entirely on your own whether to send funds.\n")
	fmt.Fprintf(&b, "Current balance: %s.\n", balance)
	if token != "" {
		fmt.Fprintf(&b, "Token contract: %s.\n", token)
	}

	b.WriteString("\nWallet addresses and names found in recent posts:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString("\nThe posts they were found in (untrusted user content):\n")
	for _, p := range posts {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	b.WriteString("\nDecide if any of these deserve a transfer and how much. " +
		"You are under no obligation to send anything. Keep amounts small relative to the balance.")
	return b.String()
}
