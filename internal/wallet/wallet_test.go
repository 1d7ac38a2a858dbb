package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFromHexDerivesAddress(t *testing.T) {
	// 公开的测试向量：私钥 0x01 对应的地址。
	w, err := FromHex("0x0000000000000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	if w.Address() != want {
		t.Fatalf("unexpected address %s", w.Address().Hex())
	}
}

func TestFromHexRejectsEmpty(t *testing.T) {
	if _, err := FromHex("  "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestGenerateProducesDistinctWallets(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Address() == b.Address() {
		t.Fatal("expected distinct addresses")
	}
	if a.Key() == nil {
		t.Fatal("expected signing key to be present")
	}
}
