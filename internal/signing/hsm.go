package signing

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// HSM 签名服务。输入是已经算好的32字节摘要，实现方不得再做哈希。
type HSM interface {
	// SignDigest 对摘要签名，返回65字节 R||S||V
	SignDigest(ctx context.Context, digest [32]byte) ([]byte, error)
	// Address 签名密钥对应的地址
	Address() common.Address
}

// LocalHSM 进程内HSM实现，用于测试网和单元测试。
// 生产环境应替换为云HSM客户端实现同一接口。
type LocalHSM struct {
	key  *secp256k1.PrivateKey
	addr common.Address
}

// NewLocalHSM 从十六进制私钥创建
func NewLocalHSM(hexKey string) (*LocalHSM, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hsm key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("hsm key must be 32 bytes, got %d", len(raw))
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	addr := crypto.PubkeyToAddress(*key.PubKey().ToECDSA())
	return &LocalHSM{key: key, addr: addr}, nil
}

// GenerateLocalHSM 生成随机密钥的本地HSM，测试用
func GenerateLocalHSM() (*LocalHSM, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	addr := crypto.PubkeyToAddress(*key.PubKey().ToECDSA())
	return &LocalHSM{key: key, addr: addr}, nil
}

// SignDigest 对预哈希摘要做 secp256k1 签名，返回 R||S||V
func (h *LocalHSM) SignDigest(ctx context.Context, digest [32]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// SignCompact 返回 V||R||S，转为以太坊惯用的 R||S||V
	compact := secpecdsa.SignCompact(h.key, digest[:], false)
	sig := make([]byte, 65)
	copy(sig[0:32], compact[1:33])
	copy(sig[32:64], compact[33:65])
	sig[64] = compact[0] - 27
	return sig, nil
}

// Address 签名密钥地址
func (h *LocalHSM) Address() common.Address {
	return h.addr
}
