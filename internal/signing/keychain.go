package signing

import (
	"context"
	"fmt"

	"github.com/wozhendeai/grip-sub002/internal/txcodec"

	"github.com/ethereum/go-ethereum/common"
)

// KeychainSigner 委托签名器：HSM 对交易哈希签名，外层包上
// 0x03 || rootWallet || 内层签名，链上按 AccessKey 授权校验而非
// 发送者自己的密钥。AccessKey 与专用单次密钥共用此实现，
// 单次使用的约束由密钥生命周期层负责。
type KeychainSigner struct {
	hsm        HSM
	rootWallet common.Address
}

// NewKeychainSigner 创建委托签名器
func NewKeychainSigner(hsm HSM, rootWallet common.Address) *KeychainSigner {
	return &KeychainSigner{hsm: hsm, rootWallet: rootWallet}
}

// Sign 签名交易。HSM 收到的是已经算好的交易哈希，不再二次哈希。
func (s *KeychainSigner) Sign(ctx context.Context, tx *txcodec.Transaction) (*SignedTx, error) {
	if tx.AuthType != txcodec.AuthTypeSecp256k1 {
		return nil, fmt.Errorf("keychain signer requires secp256k1 auth type, got %d", tx.AuthType)
	}

	hash, err := txcodec.Hash(tx)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}

	inner, err := s.hsm.SignDigest(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("hsm sign: %w", err)
	}

	signed := *tx
	signed.Signature = txcodec.WrapKeychainSignature(s.rootWallet, inner)

	raw, err := txcodec.EncodeSigned(&signed)
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}

	return &SignedTx{Raw: raw, Hash: hash}, nil
}
