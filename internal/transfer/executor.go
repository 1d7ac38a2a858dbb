package transfer

import (
	"context"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/wallet"
	"OpenAgent-Chain/internal/web3"
	"OpenAgent-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Result 记录单条转账指令的执行结果。Err 非空表示该条失败，
// 不影响其它条目。
type Result struct {
	Target string
	TxHash common.Hash
	Err    error
}

// Executor 把解析后的决策条目逐条落到链上。
type Executor struct {
	chain web3.Client
	from  *wallet.Wallet
}

// NewExecutor 创建执行器。
func NewExecutor(chain web3.Client, from *wallet.Wallet) *Executor {
	return &Executor{chain: chain, from: from}
}

// ExecuteAll 顺序执行所有条目。空载荷直接成功、不触碰链。
// 单条失败（目标非法、解析不到名称、链上错误）记入该条结果并继续；
// 必需字段缺失则放弃剩余条目并返回不可重试错误，已提交的转账不回滚。
func (e *Executor) ExecuteAll(ctx context.Context, entries []Entry) ([]Result, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		address, amount, err := entry.Fields()
		if err != nil {
			return results, err
		}

		result := Result{Target: address}
		result.TxHash, result.Err = e.executeOne(ctx, entry, address, amount)
		if result.Err != nil {
			logger.L().Error("转账执行失败",
				"target", address,
				"code", string(xerrors.CodeOf(result.Err)),
				"error", result.Err)
		} else {
			logger.Audit().Info("transfer submitted and confirmed",
				"target", address,
				"amount", amount.String(),
				"tx_hash", result.TxHash.Hex())
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Executor) executeOne(ctx context.Context, entry Entry, address string, amount decimal.Decimal) (common.Hash, error) {
	target, err := web3.ParseTarget(address)
	if err != nil {
		return common.Hash{}, err
	}

	if entry.Token != nil && *entry.Token != "" {
		if !common.IsHexAddress(*entry.Token) {
			return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument,
				"代币合约地址非法: "+*entry.Token)
		}
		// 代币金额按基础单位取整，小数部分直接截断。
		units := amount.Truncate(0).BigInt()
		return e.chain.TransferToken(ctx, e.from, target, common.HexToAddress(*entry.Token), units)
	}
	return e.chain.TransferNative(ctx, e.from, target, amount)
}
