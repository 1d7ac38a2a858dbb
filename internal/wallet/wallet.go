package wallet

import (
	"crypto/ecdsa"
	"strings"

	xerrors "OpenAgent-Chain/internal/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet 持有智能体独占的密钥对。整个进程只加载一次，
// 以显式句柄的方式传递，避免把私钥放进全局状态。
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromHex 从十六进制私钥构造钱包。允许 0x 前缀。
func FromHex(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "私钥不能为空")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析私钥失败")
	}
	return fromKey(key), nil
}

// Generate 生成一个全新的随机钱包。智能体在未配置私钥时每次启动
// 使用新钱包，旧钱包中的资产不再可达。
func Generate() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "生成钱包密钥失败")
	}
	return fromKey(key), nil
}

func fromKey(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address 返回钱包的校验和格式地址。
func (w *Wallet) Address() common.Address {
	if w == nil {
		return common.Address{}
	}
	return w.address
}

// Key 返回用于交易签名的私钥。
func (w *Wallet) Key() *ecdsa.PrivateKey {
	if w == nil {
		return nil
	}
	return w.key
}
