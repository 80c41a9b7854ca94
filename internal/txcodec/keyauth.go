package txcodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// KeyLimit 单代币授权额度
type KeyLimit struct {
	Token  common.Address
	Amount *big.Int
}

// KeyAuthorization 委托授权消息，由 root 钱包所有者签名：
// RLP 列表 [chainId, keyType, keyId, expiry?, limits?]
type KeyAuthorization struct {
	ChainID *big.Int
	KeyType uint8
	KeyID   common.Address
	Expiry  uint64     `rlp:"optional"` // unix秒，0表示不过期
	Limits  []KeyLimit `rlp:"optional"`
}

// EncodeKeyAuthorization 序列化授权消息
func EncodeKeyAuthorization(auth *KeyAuthorization) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(auth)
	if err != nil {
		return nil, fmt.Errorf("rlp encode key authorization: %w", err)
	}
	return raw, nil
}

// DecodeKeyAuthorization 反序列化授权消息
func DecodeKeyAuthorization(raw []byte) (*KeyAuthorization, error) {
	var auth KeyAuthorization
	if err := rlp.DecodeBytes(raw, &auth); err != nil {
		return nil, fmt.Errorf("rlp decode key authorization: %w", err)
	}
	return &auth, nil
}

// HashKeyAuthorization 计算授权消息哈希，root 钱包所有者对其签名
func HashKeyAuthorization(auth *KeyAuthorization) (common.Hash, error) {
	raw, err := EncodeKeyAuthorization(auth)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}
