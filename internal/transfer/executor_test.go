package transfer

import (
	"context"
	"math/big"
	"testing"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/wallet"
	"OpenAgent-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type stubChain struct {
	nativeCalls []string
	tokenCalls  []string
	tokenUnits  []*big.Int
	failTargets map[string]error
}

func (s *stubChain) NativeBalance(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubChain) TokenBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (s *stubChain) Resolve(ctx context.Context, target web3.Target) (common.Address, error) {
	return target.Address(), nil
}

func (s *stubChain) TransferNative(ctx context.Context, from *wallet.Wallet, target web3.Target, amount decimal.Decimal) (common.Hash, error) {
	s.nativeCalls = append(s.nativeCalls, target.String())
	if err := s.failTargets[target.String()]; err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash("0x01"), nil
}

func (s *stubChain) TransferToken(ctx context.Context, from *wallet.Wallet, target web3.Target, token common.Address, amount *big.Int) (common.Hash, error) {
	s.tokenCalls = append(s.tokenCalls, target.String())
	s.tokenUnits = append(s.tokenUnits, amount)
	return common.HexToHash("0x02"), nil
}

func (s *stubChain) Close() {}

func newTestExecutor(t *testing.T) (*Executor, *stubChain) {
	t.Helper()
	w, err := wallet.Generate()
	if err != nil {
		t.Fatalf("failed to generate wallet: %v", err)
	}
	chain := &stubChain{failTargets: map[string]error{}}
	return NewExecutor(chain, w), chain
}

func TestExecuteAllEmptyDecisionTouchesNothing(t *testing.T) {
	exec, chain := newTestExecutor(t)

	entries, err := ParseDecision("[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := exec.ExecuteAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("empty decision must succeed, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
	if len(chain.nativeCalls)+len(chain.tokenCalls) != 0 {
		t.Fatal("empty decision must not touch the chain")
	}
}

func TestExecuteAllMissingFieldAbortsRemaining(t *testing.T) {
	exec, chain := newTestExecutor(t)

	entries, err := ParseDecision(`[
		{"address":"alice.eth","amount":0.01},
		{"address":"bob.eth"},
		{"address":"carol.eth","amount":0.02}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := exec.ExecuteAll(context.Background(), entries)
	if xerrors.CodeOf(err) != xerrors.CodeMalformedDecision {
		t.Fatalf("expected MALFORMED_DECISION, got %v", err)
	}
	if xerrors.RetryableError(err) {
		t.Fatal("missing field must not be retryable")
	}
	if len(results) != 1 {
		t.Fatalf("expected only the first entry executed, got %d", len(results))
	}
	if len(chain.nativeCalls) != 1 || chain.nativeCalls[0] != "alice.eth" {
		t.Fatalf("unexpected chain calls: %v", chain.nativeCalls)
	}
}

func TestExecuteAllContinuesAfterEntryFailure(t *testing.T) {
	exec, chain := newTestExecutor(t)
	chain.failTargets["alice.eth"] = xerrors.New(xerrors.CodeUnresolvedName, "名称解析失败")

	entries, err := ParseDecision(`[
		{"address":"alice.eth","amount":0.01},
		{"address":"bob.eth","amount":0.02}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := exec.ExecuteAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("entry failure must not abort the batch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Fatal("first entry should have failed")
	}
	if results[1].Err != nil {
		t.Fatalf("second entry should have succeeded, got %v", results[1].Err)
	}
	if len(chain.nativeCalls) != 2 {
		t.Fatalf("both entries should reach the chain, got %v", chain.nativeCalls)
	}
}

func TestExecuteAllRoutesTokenEntries(t *testing.T) {
	exec, chain := newTestExecutor(t)

	entries, err := ParseDecision(`[
		{"address":"alice.eth","amount":1500.7,"token":"0x6B175474E89094C44Da98b954EedeAC495271d0F"}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := exec.ExecuteAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected entry error: %v", results[0].Err)
	}
	if len(chain.tokenCalls) != 1 || len(chain.nativeCalls) != 0 {
		t.Fatalf("token entry must go through the token path: native=%v token=%v", chain.nativeCalls, chain.tokenCalls)
	}
	if chain.tokenUnits[0].Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("token amount must be truncated to base units, got %s", chain.tokenUnits[0])
	}
}

func TestExecuteAllRecordsInvalidTarget(t *testing.T) {
	exec, chain := newTestExecutor(t)

	entries, err := ParseDecision(`[{"address":"not-a-target","amount":0.01}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := exec.ExecuteAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Err == nil {
		t.Fatal("invalid target should fail the entry")
	}
	if len(chain.nativeCalls)+len(chain.tokenCalls) != 0 {
		t.Fatal("invalid target must not reach the chain")
	}
}
