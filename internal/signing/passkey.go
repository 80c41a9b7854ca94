package signing

import (
	"context"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/wozhendeai/grip-sub002/internal/txcodec"

	"github.com/ethereum/go-ethereum/rlp"
)

// PasskeyAssertion 硬件 passkey 对交易哈希挑战的断言结果。
// 浏览器往返发生在本核心之外，签名器只消费已经采集好的断言。
type PasskeyAssertion struct {
	// WebAuthn 返回的 DER 编码 P-256 签名
	DERSignature []byte
	// 认证器附带数据，随签名一并上链供校验
	AuthenticatorData []byte
	ClientDataJSON    []byte
}

// PasskeySigner 交互式签名器：把断言的 DER 签名拆成两个32字节分量，
// 与认证器数据一起重新编码进交易签名字段
type PasskeySigner struct {
	assertion PasskeyAssertion
}

// NewPasskeySigner 创建交互式签名器
func NewPasskeySigner(assertion PasskeyAssertion) *PasskeySigner {
	return &PasskeySigner{assertion: assertion}
}

// passkeySigFields 签名字段的RLP布局
type passkeySigFields struct {
	R                 []byte
	S                 []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
}

// Sign 签名交易
func (s *PasskeySigner) Sign(ctx context.Context, tx *txcodec.Transaction) (*SignedTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx.AuthType != txcodec.AuthTypePasskey {
		return nil, fmt.Errorf("passkey signer requires passkey auth type, got %d", tx.AuthType)
	}

	hash, err := txcodec.Hash(tx)
	if err != nil {
		return nil, fmt.Errorf("hash transaction: %w", err)
	}

	r, sv, err := DecomposeDERSignature(s.assertion.DERSignature)
	if err != nil {
		return nil, fmt.Errorf("decompose assertion signature: %w", err)
	}

	sigField, err := rlp.EncodeToBytes(&passkeySigFields{
		R:                 r[:],
		S:                 sv[:],
		AuthenticatorData: s.assertion.AuthenticatorData,
		ClientDataJSON:    s.assertion.ClientDataJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("encode passkey signature: %w", err)
	}

	signed := *tx
	signed.Signature = sigField

	raw, err := txcodec.EncodeSigned(&signed)
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}

	return &SignedTx{Raw: raw, Hash: hash}, nil
}

// derSignature DER签名的ASN.1结构
type derSignature struct {
	R *big.Int
	S *big.Int
}

// DecomposeDERSignature 把 DER 编码的 ECDSA 签名拆成两个32字节分量
func DecomposeDERSignature(der []byte) ([32]byte, [32]byte, error) {
	var r32, s32 [32]byte
	var sig derSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return r32, s32, fmt.Errorf("parse der signature: %w", err)
	}
	if len(rest) != 0 {
		return r32, s32, fmt.Errorf("trailing bytes after der signature")
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return r32, s32, fmt.Errorf("der signature components must be positive")
	}
	if sig.R.BitLen() > 256 || sig.S.BitLen() > 256 {
		return r32, s32, fmt.Errorf("der signature component exceeds 32 bytes")
	}
	sig.R.FillBytes(r32[:])
	sig.S.FillBytes(s32[:])
	return r32, s32, nil
}
