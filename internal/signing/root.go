package signing

import (
	"context"
	"fmt"

	"github.com/wozhendeai/grip-sub002/internal/txcodec"
)

// RootSigner 第一方签名器：发送者用自己的密钥直接签名，
// 签名不加keychain前缀。托管钱包划转走这条路。
type RootSigner struct {
	hsm HSM
}

// NewRootSigner 创建第一方签名器
func NewRootSigner(hsm HSM) *RootSigner {
	return &RootSigner{hsm: hsm}
}

// Sign 签名交易
func (s *RootSigner) Sign(ctx context.Context, tx *txcodec.Transaction) (*SignedTx, error) {
	if tx.AuthType != txcodec.AuthTypeSecp256k1 {
		return nil, fmt.Errorf("root signer requires secp256k1 auth type, got %d", tx.AuthType)
	}

	hash, err := txcodec.Hash(tx)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}

	sig, err := s.hsm.SignDigest(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("hsm sign: %w", err)
	}

	signed := *tx
	signed.Signature = sig

	raw, err := txcodec.EncodeSigned(&signed)
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}

	return &SignedTx{Raw: raw, Hash: hash}, nil
}
