package web3

import (
	"context"
	"math/big"
	"strings"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TargetKind discriminates the two forms a transfer target can take.
type TargetKind int

const (
	// TargetAddress is a well-formed hex address used as-is.
	TargetAddress TargetKind = iota
	// TargetName is a human-readable name resolved through the naming service.
	TargetName
)

// Target is the tagged union of a raw address and a resolvable name. Callers
// construct it with ParseTarget and hand it to Client.Resolve; raw addresses
// pass through untouched, names go through the naming service.
type Target struct {
	kind    TargetKind
	address common.Address
	name    string
}

// ParseTarget classifies a candidate string as an address or a name.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, xerrors.New(xerrors.CodeInvalidArgument, "转账目标不能为空")
	}
	if common.IsHexAddress(raw) {
		return Target{kind: TargetAddress, address: common.HexToAddress(raw)}, nil
	}
	if strings.HasSuffix(raw, ".eth") {
		return Target{kind: TargetName, name: raw}, nil
	}
	return Target{}, xerrors.New(xerrors.CodeInvalidArgument, "无法识别的转账目标: "+raw)
}

// AddressTarget wraps an already validated address.
func AddressTarget(addr common.Address) Target {
	return Target{kind: TargetAddress, address: addr}
}

// Kind returns the union tag.
func (t Target) Kind() TargetKind {
	return t.kind
}

// Address returns the raw address; only meaningful for TargetAddress.
func (t Target) Address() common.Address {
	return t.address
}

// Name returns the resolvable name; only meaningful for TargetName.
func (t Target) Name() string {
	return t.name
}

// String renders the target the way it appeared in the decision.
func (t Target) String() string {
	if t.kind == TargetName {
		return t.name
	}
	return t.address.Hex()
}

// Client defines the common interface that any chain implementation must
// provide so higher layers can interact with different networks uniformly.
type Client interface {
	// NativeBalance 查询账户的原生币余额，单位为显示单位（ether）。
	NativeBalance(ctx context.Context, account common.Address) (decimal.Decimal, error)
	// TokenBalance 查询账户在代币合约中的余额，单位为基础单位。
	TokenBalance(ctx context.Context, owner, token common.Address) (*big.Int, error)
	// Resolve 把目标解析为校验和有效的地址。原生地址原样返回。
	Resolve(ctx context.Context, target Target) (common.Address, error)
	// TransferNative 签名并提交一笔原生币转账，阻塞直到回执确认。
	TransferNative(ctx context.Context, from *wallet.Wallet, target Target, amount decimal.Decimal) (common.Hash, error)
	// TransferToken 通过代币合约的 transfer 方法转账，提交前必须校验余额。
	TransferToken(ctx context.Context, from *wallet.Wallet, target Target, token common.Address, amount *big.Int) (common.Hash, error)
	Close()
}

// WeiToEther converts a wei amount into its display denomination.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}

// EtherToWei converts a display-denominated amount into wei, truncating any
// fraction below one wei.
func EtherToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(18).Truncate(0).BigInt()
}
