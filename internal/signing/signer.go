// Package signing 实现支付交易的三种签名策略：交互式 passkey、
// 委托 AccessKey（后端HSM）、单次使用专用密钥。三者共用同一套
// 交易编码逻辑，只在签名字段的产生方式上不同。
package signing

import (
	"context"

	"github.com/wozhendeai/grip-sub002/internal/txcodec"

	"github.com/ethereum/go-ethereum/common"
)

// SignedTx 签名结果
type SignedTx struct {
	Raw  []byte      // 已签名交易的序列化字节
	Hash common.Hash // 未签名交易哈希
}

// Signer 签名器。签名是纯函数：不修改任何支付/提交状态，
// 失败原样上报，内部不重试。
type Signer interface {
	Sign(ctx context.Context, tx *txcodec.Transaction) (*SignedTx, error)
}
