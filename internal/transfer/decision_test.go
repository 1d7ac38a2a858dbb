package transfer

import (
	"testing"

	xerrors "OpenAgent-Chain/internal/errors"
)

func TestParseDecisionSentinelMeansNoTransfer(t *testing.T) {
	entries, err := ParseDecision("NO_TRANSFER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %v", entries)
	}
}

func TestParseDecisionEmptyArray(t *testing.T) {
	entries, err := ParseDecision("[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %v", entries)
	}
}

func TestParseDecisionEntries(t *testing.T) {
	entries, err := ParseDecision(`[{"address":"alice.eth","amount":0.05},{"address":"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed","amount":"0.1"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	address, amount, err := entries[0].Fields()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if address != "alice.eth" {
		t.Fatalf("unexpected address %q", address)
	}
	if amount.String() != "0.05" {
		t.Fatalf("unexpected amount %s", amount)
	}
}

func TestParseDecisionStripsCodeFence(t *testing.T) {
	entries, err := ParseDecision("```json\n[{\"address\":\"bob.eth\",\"amount\":1}]\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestParseDecisionGarbageIsRetryable(t *testing.T) {
	_, err := ParseDecision("sure, I'll send 0.1 ETH to alice.eth!")
	if xerrors.CodeOf(err) != xerrors.CodeMalformedDecision {
		t.Fatalf("expected MALFORMED_DECISION, got %v", err)
	}
	if !xerrors.RetryableError(err) {
		t.Fatal("parse failures must be retryable")
	}
}

func TestEntryMissingFieldIsNotRetryable(t *testing.T) {
	entries, err := ParseDecision(`[{"address":"alice.eth"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = entries[0].Fields()
	if xerrors.CodeOf(err) != xerrors.CodeMalformedDecision {
		t.Fatalf("expected MALFORMED_DECISION, got %v", err)
	}
	if xerrors.RetryableError(err) {
		t.Fatal("missing fields must not trigger another decision round")
	}
}
