package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/wallet"
	"OpenAgent-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"
)

const (
	// nativeTransferGas 是普通转账的固定 gas 上限。
	nativeTransferGas = 21_000
	// tokenTransferGas 覆盖常见 ERC-20 的 transfer 开销。
	tokenTransferGas = 100_000

	defaultGasPriceMultiplier  = 1.1
	defaultReceiptPollInterval = 2 * time.Second
)

// defaultENSRegistry 是主网及多数测试网共用的 ENS 注册表地址。
var defaultENSRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const ensRegistryABIJSON = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

const ensResolverABIJSON = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

var (
	erc20ABI       abi.ABI
	ensRegistryABI abi.ABI
	ensResolverABI abi.ABI
)

func init() {
	erc20ABI = mustABI(erc20ABIJSON)
	ensRegistryABI = mustABI(ensRegistryABIJSON)
	ensResolverABI = mustABI(ensResolverABIJSON)
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("内置 ABI 解析失败: %v", err))
	}
	return parsed
}

// backend 抽象真实节点与模拟后端共有的能力，方便测试注入。
type backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
}

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name               string
	RPCURL             string
	ENSRegistry        string
	GasPriceMultiplier float64
	Notes              string
}

// Client implements the web3.Client interface for EVM compatible chains.
type Client struct {
	name          string
	notes         string
	rpcClient     *gethrpc.Client
	backend       backend
	sim           *backends.SimulatedBackend
	chainID       *big.Int
	ensRegistry   common.Address
	gasMultiplier float64
	receiptPoll   time.Duration
}

// Option 调整客户端的可选行为。
type Option func(*Client)

// WithReceiptPollInterval 设置等待回执时的轮询间隔。
func WithReceiptPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.receiptPoll = interval
		}
	}
}

// WithGasPriceMultiplier 覆盖建议 gas 价格的溢价倍数。
func WithGasPriceMultiplier(multiplier float64) Option {
	return func(c *Client) {
		if multiplier > 0 {
			c.gasMultiplier = multiplier
		}
	}
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "连接以太坊节点失败")
	}

	eth := ethclient.NewClient(rpcClient)
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "获取链 ID 失败")
	}

	client := &Client{
		name:          cfg.Name,
		notes:         cfg.Notes,
		rpcClient:     rpcClient,
		backend:       eth,
		chainID:       chainID,
		ensRegistry:   defaultENSRegistry,
		gasMultiplier: defaultGasPriceMultiplier,
		receiptPoll:   defaultReceiptPollInterval,
	}
	if registry := strings.TrimSpace(cfg.ENSRegistry); registry != "" {
		client.ensRegistry = common.HexToAddress(registry)
	}
	if cfg.GasPriceMultiplier > 0 {
		client.gasMultiplier = cfg.GasPriceMultiplier
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewSimulatedClient wraps a go-ethereum simulated backend for testing purposes.
func NewSimulatedClient(name string, chainID *big.Int, sim *backends.SimulatedBackend, opts ...Option) *Client {
	client := &Client{
		name:          name,
		notes:         "simulated backend",
		backend:       sim,
		sim:           sim,
		chainID:       new(big.Int).Set(chainID),
		ensRegistry:   defaultENSRegistry,
		gasMultiplier: defaultGasPriceMultiplier,
		receiptPoll:   50 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	if c == nil || c.rpcClient == nil {
		return
	}
	c.rpcClient.Close()
	c.rpcClient = nil
}

// NativeBalance 查询账户当前的原生币余额，换算为显示单位。
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	wei, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return decimal.Zero, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询余额失败")
	}
	return web3.WeiToEther(wei), nil
}

// TokenBalance 通过只读合约调用查询代币余额，单位为基础单位。
func (c *Client) TokenBalance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeContractCallFailure, err, "编码 balanceOf 调用失败")
	}
	out, err := c.backend.CallContract(ctx, gethcore.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询代币余额失败")
	}
	values, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(values) != 1 {
		return nil, xerrors.Wrap(xerrors.CodeContractCallFailure, err, "解析 balanceOf 返回值失败")
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, xerrors.New(xerrors.CodeContractCallFailure, "balanceOf 返回值类型异常")
	}
	return balance, nil
}

// Resolve 把转账目标解析为校验和有效的地址。已经是地址的目标原样
// 返回，不经过命名服务；名称通过 ENS 注册表与解析器两跳查询。
func (c *Client) Resolve(ctx context.Context, target web3.Target) (common.Address, error) {
	switch target.Kind() {
	case web3.TargetAddress:
		return target.Address(), nil
	case web3.TargetName:
		addr, err := c.resolveName(ctx, target.Name())
		if err != nil {
			return common.Address{}, err
		}
		if addr == (common.Address{}) {
			return common.Address{}, xerrors.New(xerrors.CodeUnresolvedName, "无法解析名称: "+target.Name())
		}
		return addr, nil
	default:
		return common.Address{}, xerrors.New(xerrors.CodeInvalidArgument, "未知的目标类型")
	}
}

func (c *Client) resolveName(ctx context.Context, name string) (common.Address, error) {
	node := namehash(strings.ToLower(strings.TrimSpace(name)))

	data, err := ensRegistryABI.Pack("resolver", node)
	if err != nil {
		return common.Address{}, xerrors.Wrap(xerrors.CodeContractCallFailure, err, "编码 resolver 调用失败")
	}
	out, err := c.backend.CallContract(ctx, gethcore.CallMsg{To: &c.ensRegistry, Data: data}, nil)
	if err != nil {
		return common.Address{}, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询 ENS 注册表失败")
	}
	resolverAddr, err := unpackAddress(ensRegistryABI, "resolver", out)
	if err != nil {
		return common.Address{}, err
	}
	if resolverAddr == (common.Address{}) {
		return common.Address{}, nil
	}

	data, err = ensResolverABI.Pack("addr", node)
	if err != nil {
		return common.Address{}, xerrors.Wrap(xerrors.CodeContractCallFailure, err, "编码 addr 调用失败")
	}
	out, err = c.backend.CallContract(ctx, gethcore.CallMsg{To: &resolverAddr, Data: data}, nil)
	if err != nil {
		return common.Address{}, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询 ENS 解析器失败")
	}
	return unpackAddress(ensResolverABI, "addr", out)
}

// TransferNative 构建、签名并提交一笔原生币转账，阻塞直到回执确认。
func (c *Client) TransferNative(ctx context.Context, from *wallet.Wallet, target web3.Target, amount decimal.Decimal) (common.Hash, error) {
	if from == nil || from.Key() == nil {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "未提供签名钱包")
	}
	if amount.Sign() <= 0 {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "转账金额必须为正数")
	}

	to, err := c.Resolve(ctx, target)
	if err != nil {
		return common.Hash{}, err
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	// 提交前重新读取 nonce，避免同一周期内顺序转账互相覆盖。
	nonce, err := c.backend.PendingNonceAt(ctx, from.Address())
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询交易计数失败")
	}

	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    web3.EtherToWei(amount),
		Gas:      nativeTransferGas,
		GasPrice: gasPrice,
	})
	return c.signAndSubmit(ctx, from, tx)
}

// TransferToken 通过 ERC-20 合约的 transfer 方法转账。提交前检查
// 调用方的代币余额，避免在注定回滚的交易上浪费 gas。
func (c *Client) TransferToken(ctx context.Context, from *wallet.Wallet, target web3.Target, token common.Address, amount *big.Int) (common.Hash, error) {
	if from == nil || from.Key() == nil {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "未提供签名钱包")
	}
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "转账数量必须为正数")
	}

	to, err := c.Resolve(ctx, target)
	if err != nil {
		return common.Hash{}, err
	}

	balance, err := c.TokenBalance(ctx, from.Address(), token)
	if err != nil {
		return common.Hash{}, err
	}
	if balance.Cmp(amount) < 0 {
		return common.Hash{}, xerrors.New(xerrors.CodeInsufficientBalance,
			fmt.Sprintf("代币余额不足: 现有 %s, 需要 %s", balance, amount))
	}

	data, err := erc20ABI.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeContractCallFailure, err, "编码 transfer 调用失败")
	}

	gasPrice, err := c.gasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, from.Address())
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询交易计数失败")
	}

	tx := coretypes.NewTx(&coretypes.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Value:    new(big.Int),
		Gas:      tokenTransferGas,
		GasPrice: gasPrice,
		Data:     data,
	})
	return c.signAndSubmit(ctx, from, tx)
}

func (c *Client) signAndSubmit(ctx context.Context, from *wallet.Wallet, tx *coretypes.Transaction) (common.Hash, error) {
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chainID), from.Key())
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "签名交易失败")
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "提交交易失败")
	}

	hash := signed.Hash()
	receipt, err := c.waitReceipt(ctx, hash)
	if err != nil {
		return hash, err
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return hash, xerrors.New(xerrors.CodeContractCallFailure, "交易已回滚",
			xerrors.WithMetadata("tx_hash", hash.Hex()))
	}
	return hash, nil
}

func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()

	for {
		if c.sim != nil {
			c.sim.Commit()
		}
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询交易回执失败",
				xerrors.WithMetadata("tx_hash", hash.Hex()))
		}

		select {
		case <-ctx.Done():
			return nil, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "等待交易回执超时",
				xerrors.WithMetadata("tx_hash", hash.Hex()))
		case <-ticker.C:
		}
	}
}

// gasPrice 在节点建议价格的基础上乘以配置的溢价倍数，降低交易卡住的概率。
func (c *Client) gasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "查询建议 gas 价格失败")
	}
	price, _ := new(big.Float).Mul(new(big.Float).SetInt(suggested), big.NewFloat(c.gasMultiplier)).Int(nil)
	return price, nil
}

func unpackAddress(parsed abi.ABI, method string, out []byte) (common.Address, error) {
	if len(out) == 0 {
		return common.Address{}, nil
	}
	values, err := parsed.Unpack(method, out)
	if err != nil || len(values) != 1 {
		return common.Address{}, xerrors.Wrap(xerrors.CodeContractCallFailure, err, "解析 "+method+" 返回值失败")
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, xerrors.New(xerrors.CodeContractCallFailure, method+" 返回值类型异常")
	}
	return addr, nil
}

// namehash 按 EIP-137 递归哈希名称的各级标签。
func namehash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash)
	}
	return node
}

var _ web3.Client = (*Client)(nil)
