package signing

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceLocker 按出资人地址串行化 取nonce→签名→广播 的过程，
// 同一地址同一时刻只允许一笔委托支付在途，避免nonce冲突互相覆盖
type NonceLocker struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

// NewNonceLocker 创建nonce锁
func NewNonceLocker() *NonceLocker {
	return &NonceLocker{locks: make(map[common.Address]*sync.Mutex)}
}

// Lock 锁住指定地址，返回解锁函数
func (n *NonceLocker) Lock(addr common.Address) func() {
	n.mu.Lock()
	l, ok := n.locks[addr]
	if !ok {
		l = &sync.Mutex{}
		n.locks[addr] = l
	}
	n.mu.Unlock()

	l.Lock()
	return l.Unlock
}
