package transfer

import (
	"context"
	"strings"
	"testing"

	"OpenAgent-Chain/internal/llm"
	"OpenAgent-Chain/internal/retry"

	"github.com/shopspring/decimal"
)

type scriptedLLM struct {
	requests  []llm.Request
	responses []string
}

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return "NO_TRANSFER", nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func TestDecideNativeSamplingAndPrompt(t *testing.T) {
	stub := &scriptedLLM{responses: []string{"NO_TRANSFER"}}
	engine := NewEngine(stub)

	_, err := engine.DecideNative(context.Background(),
		[]string{"send me eth at vitalik.eth"},
		[]string{"vitalik.eth"},
		decimal.RequireFromString("0.5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stub.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(stub.requests))
	}
	req := stub.requests[0]
	if req.Temperature != 1 || req.TopP != 0.95 || req.TopK != 40 || req.PresencePenalty != 0 {
		t.Fatalf("unexpected sampling params: %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("unexpected message shape: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "vitalik.eth") {
		t.Fatal("system prompt must carry the extracted candidates")
	}
	if !strings.Contains(req.Messages[1].Content, NoTransferSentinel) {
		t.Fatal("user message must offer the no-transfer sentinel")
	}
}

func TestDecisionRetryBudgetIsTwoAttempts(t *testing.T) {
	stub := &scriptedLLM{responses: []string{"gibberish one", "gibberish two", "[]"}}
	engine := NewEngine(stub)

	policy := retry.Policy{MaxAttempts: 2}
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		raw, err := engine.DecideNative(ctx, nil, nil, decimal.Zero)
		if err != nil {
			return err
		}
		_, err = ParseDecision(raw)
		return err
	})
	if err == nil {
		t.Fatal("expected the retry budget to be exhausted")
	}
	if len(stub.requests) != 2 {
		t.Fatalf("expected exactly 2 decision attempts, got %d", len(stub.requests))
	}
}
