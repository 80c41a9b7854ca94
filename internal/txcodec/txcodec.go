// Package txcodec 实现转账交易的链上二进制编码：
// 单字节类型标签 + RLP 列表 [chainId, nonce, maxFeePerGas, gas, to, value,
// data, authType, feeToken, sponsor]，签名后在列表末尾追加 signature 字段。
package txcodec

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType 交易类型标签
const TxType byte = 0x04

// AuthType 标识交易由哪种签名方案授权
const (
	AuthTypeSecp256k1 uint8 = 0 // 后端 secp256k1 密钥
	AuthTypePasskey   uint8 = 1 // 交互式 passkey (P-256/WebAuthn)
)

// KeychainSigPrefix 委托(Keychain)签名前缀字节，链上按 AccessKey 授权校验
const KeychainSigPrefix byte = 0x03

// Transaction 转账交易
type Transaction struct {
	ChainID      *big.Int
	Nonce        uint64
	MaxFeePerGas *big.Int
	Gas          uint64
	To           common.Address
	Value        *big.Int
	Data         []byte
	AuthType     uint8
	FeeToken     common.Address
	Sponsor      common.Address

	// 签名字段，签名前为空
	Signature []byte
}

// payload RLP 线格式，Signature 在未签名编码中省略
type payload struct {
	ChainID      *big.Int
	Nonce        uint64
	MaxFeePerGas *big.Int
	Gas          uint64
	To           common.Address
	Value        *big.Int
	Data         []byte
	AuthType     uint8
	FeeToken     common.Address
	Sponsor      common.Address
	Signature    []byte `rlp:"optional"`
}

func (tx *Transaction) toPayload(withSig bool) *payload {
	p := &payload{
		ChainID:      tx.ChainID,
		Nonce:        tx.Nonce,
		MaxFeePerGas: tx.MaxFeePerGas,
		Gas:          tx.Gas,
		To:           tx.To,
		Value:        tx.Value,
		Data:         tx.Data,
		AuthType:     tx.AuthType,
		FeeToken:     tx.FeeToken,
		Sponsor:      tx.Sponsor,
	}
	if withSig {
		p.Signature = tx.Signature
	}
	return p
}

// EncodeUnsigned 序列化未签名交易
func EncodeUnsigned(tx *Transaction) ([]byte, error) {
	body, err := rlp.EncodeToBytes(tx.toPayload(false))
	if err != nil {
		return nil, fmt.Errorf("rlp encode: %w", err)
	}
	return append([]byte{TxType}, body...), nil
}

// EncodeSigned 序列化已签名交易
func EncodeSigned(tx *Transaction) ([]byte, error) {
	if len(tx.Signature) == 0 {
		return nil, fmt.Errorf("transaction has no signature")
	}
	body, err := rlp.EncodeToBytes(tx.toPayload(true))
	if err != nil {
		return nil, fmt.Errorf("rlp encode: %w", err)
	}
	return append([]byte{TxType}, body...), nil
}

// Decode 反序列化交易，接受签名和未签名两种形式
func Decode(raw []byte) (*Transaction, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("transaction too short: %d bytes", len(raw))
	}
	if raw[0] != TxType {
		return nil, fmt.Errorf("unknown transaction type 0x%02x", raw[0])
	}
	var p payload
	if err := rlp.DecodeBytes(raw[1:], &p); err != nil {
		return nil, fmt.Errorf("rlp decode: %w", err)
	}
	return &Transaction{
		ChainID:      p.ChainID,
		Nonce:        p.Nonce,
		MaxFeePerGas: p.MaxFeePerGas,
		Gas:          p.Gas,
		To:           p.To,
		Value:        p.Value,
		Data:         p.Data,
		AuthType:     p.AuthType,
		FeeToken:     p.FeeToken,
		Sponsor:      p.Sponsor,
		Signature:    p.Signature,
	}, nil
}

// Hash 计算签名用交易哈希：keccak256(标签 || 未签名RLP)。
// 已签名交易求哈希时同样剥离签名字段。
func Hash(tx *Transaction) (common.Hash, error) {
	raw, err := EncodeUnsigned(tx)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}

// WrapKeychainSignature 包装委托签名: 0x03 || rootWallet(20) || 内层签名
func WrapKeychainSignature(rootWallet common.Address, inner []byte) []byte {
	out := make([]byte, 0, 1+common.AddressLength+len(inner))
	out = append(out, KeychainSigPrefix)
	out = append(out, rootWallet.Bytes()...)
	return append(out, inner...)
}

// ParseKeychainSignature 拆解委托签名
func ParseKeychainSignature(sig []byte) (common.Address, []byte, error) {
	if len(sig) < 1+common.AddressLength {
		return common.Address{}, nil, fmt.Errorf("keychain signature too short: %d bytes", len(sig))
	}
	if sig[0] != KeychainSigPrefix {
		return common.Address{}, nil, fmt.Errorf("not a keychain signature, prefix 0x%02x", sig[0])
	}
	return common.BytesToAddress(sig[1 : 1+common.AddressLength]), sig[1+common.AddressLength:], nil
}

// IsKeychainSignature 判断是否为委托签名
func IsKeychainSignature(sig []byte) bool {
	return len(sig) > 0 && sig[0] == KeychainSigPrefix
}

// Equal 比较两笔交易的未签名内容是否一致
func Equal(a, b *Transaction) bool {
	ra, err1 := EncodeUnsigned(a)
	rb, err2 := EncodeUnsigned(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
