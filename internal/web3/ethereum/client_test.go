package ethereum

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/wallet"
	"OpenAgent-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// stubBackend lets tests script every chain interaction.
type stubBackend struct {
	balance      *big.Int
	nonce        uint64
	gasPrice     *big.Int
	callContract func(call gethcore.CallMsg) ([]byte, error)
	sent         []*coretypes.Transaction
	receipt      *coretypes.Receipt
}

func (s *stubBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if s.balance == nil {
		return new(big.Int), nil
	}
	return s.balance, nil
}

func (s *stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return s.nonce, nil
}

func (s *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if s.gasPrice == nil {
		return big.NewInt(1_000_000_000), nil
	}
	return s.gasPrice, nil
}

func (s *stubBackend) SendTransaction(ctx context.Context, tx *coretypes.Transaction) error {
	s.sent = append(s.sent, tx)
	return nil
}

func (s *stubBackend) CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if s.callContract == nil {
		return nil, errors.New("unexpected contract call")
	}
	return s.callContract(call)
}

func (s *stubBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	if s.receipt == nil {
		return nil, gethcore.NotFound
	}
	return s.receipt, nil
}

func newStubClient(stub *stubBackend) *Client {
	return &Client{
		name:          "stub",
		backend:       stub,
		chainID:       big.NewInt(1),
		ensRegistry:   defaultENSRegistry,
		gasMultiplier: defaultGasPriceMultiplier,
		receiptPoll:   time.Millisecond,
	}
}

func encodeAddress(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}

func encodeUint(value *big.Int) []byte {
	return common.LeftPadBytes(value.Bytes(), 32)
}

func TestResolveAddressIsIdentity(t *testing.T) {
	// 已经是校验和地址的目标不应触碰命名服务。
	stub := &stubBackend{callContract: func(gethcore.CallMsg) ([]byte, error) {
		t.Fatal("naming service must not be called for raw addresses")
		return nil, nil
	}}
	client := newStubClient(stub)

	want := common.HexToAddress("0x1111111111111111111111111111111111111111")
	got, err := client.Resolve(context.Background(), web3.AddressTarget(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected identity resolution, got %s", got.Hex())
	}
}

func TestResolveNameThroughRegistry(t *testing.T) {
	resolver := common.HexToAddress("0x2222222222222222222222222222222222222222")
	resolved := common.HexToAddress("0x3333333333333333333333333333333333333333")

	stub := &stubBackend{}
	stub.callContract = func(call gethcore.CallMsg) ([]byte, error) {
		if *call.To == defaultENSRegistry {
			return encodeAddress(resolver), nil
		}
		if *call.To == resolver {
			return encodeAddress(resolved), nil
		}
		return nil, errors.New("unexpected call target")
	}
	client := newStubClient(stub)

	target, err := web3.ParseTarget("alice.eth")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := client.Resolve(context.Background(), target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != resolved {
		t.Fatalf("unexpected resolution %s", got.Hex())
	}
}

func TestResolveNameUnresolved(t *testing.T) {
	stub := &stubBackend{}
	stub.callContract = func(call gethcore.CallMsg) ([]byte, error) {
		// 注册表对未知名称返回零地址解析器。
		return encodeAddress(common.Address{}), nil
	}
	client := newStubClient(stub)

	target, _ := web3.ParseTarget("nobody.eth")
	_, err := client.Resolve(context.Background(), target)
	if xerrors.CodeOf(err) != xerrors.CodeUnresolvedName {
		t.Fatalf("expected UNRESOLVED_NAME, got %v", err)
	}
}

func TestTransferTokenInsufficientBalance(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stub := &stubBackend{}
	stub.callContract = func(call gethcore.CallMsg) ([]byte, error) {
		// balanceOf 返回 5，低于请求的 10。
		return encodeUint(big.NewInt(5)), nil
	}
	client := newStubClient(stub)

	token := common.HexToAddress("0x4444444444444444444444444444444444444444")
	to := web3.AddressTarget(common.HexToAddress("0x5555555555555555555555555555555555555555"))

	_, err = client.TransferToken(context.Background(), w, to, token, big.NewInt(10))
	if xerrors.CodeOf(err) != xerrors.CodeInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}
	if len(stub.sent) != 0 {
		t.Fatalf("expected no transaction submission, got %d", len(stub.sent))
	}
}

func TestParseTargetRejectsGarbage(t *testing.T) {
	if _, err := web3.ParseTarget("not-an-address"); err == nil {
		t.Fatal("expected error for unrecognized target")
	}
	if _, err := web3.ParseTarget(""); err == nil {
		t.Fatal("expected error for empty target")
	}
}

func TestTransferNativeOnSimulatedBackend(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sender, err := wallet.Generate()
	if err != nil {
		t.Fatalf("generate wallet: %v", err)
	}
	recipient := common.HexToAddress("0x6666666666666666666666666666666666666666")

	alloc := core.GenesisAlloc{
		sender.Address(): {Balance: big.NewInt(1_000_000_000_000_000_000)},
	}
	sim := backends.NewSimulatedBackend(alloc, 8_000_000)
	client := NewSimulatedClient("simulated", big.NewInt(1337), sim)
	t.Cleanup(client.Close)

	amount := decimal.RequireFromString("0.1")
	hash, err := client.TransferNative(ctx, sender, web3.AddressTarget(recipient), amount)
	if err != nil {
		t.Fatalf("transfer native: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatal("expected transaction hash")
	}

	balance, err := client.NativeBalance(ctx, recipient)
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if !balance.Equal(amount) {
		t.Fatalf("unexpected recipient balance %s", balance)
	}
}

var _ web3.Client = (*Client)(nil)
