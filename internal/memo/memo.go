// Package memo 定义链上转账附带的32字节备注编码。
package memo

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Size 备注固定长度
const Size = 32

// handleSize 贡献者用户名截断长度
const handleSize = 16

// BountyMemo 悬赏支付备注：issue号 + PR号 + 贡献者用户名
type BountyMemo struct {
	IssueNumber uint64
	PRNumber    uint64
	Handle      string
}

// EncodeBounty 编码悬赏支付备注。
// 布局: [0:8] issue号(大端) | [8:16] PR号(大端) | [16:32] 用户名(UTF-8截断补零)
func EncodeBounty(m BountyMemo) [Size]byte {
	var buf [Size]byte
	binary.BigEndian.PutUint64(buf[0:8], m.IssueNumber)
	binary.BigEndian.PutUint64(buf[8:16], m.PRNumber)
	handle := []byte(m.Handle)
	if len(handle) > handleSize {
		handle = handle[:handleSize]
	}
	copy(buf[16:], handle)
	return buf
}

// DecodeBounty 解码悬赏支付备注，长度不是32字节直接报错
func DecodeBounty(b []byte) (BountyMemo, error) {
	if len(b) != Size {
		return BountyMemo{}, fmt.Errorf("memo must be exactly %d bytes, got %d", Size, len(b))
	}
	return BountyMemo{
		IssueNumber: binary.BigEndian.Uint64(b[0:8]),
		PRNumber:    binary.BigEndian.Uint64(b[8:16]),
		Handle:      string(bytes.TrimRight(b[16:], "\x00")),
	}, nil
}

// EncodeText 编码直接打赏的自由文本备注，超长截断补零
func EncodeText(s string) [Size]byte {
	var buf [Size]byte
	msg := []byte(s)
	if len(msg) > Size {
		msg = msg[:Size]
	}
	copy(buf[:], msg)
	return buf
}

// DecodeText 解码自由文本备注
func DecodeText(b []byte) (string, error) {
	if len(b) != Size {
		return "", fmt.Errorf("memo must be exactly %d bytes, got %d", Size, len(b))
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}
