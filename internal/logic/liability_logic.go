package logic

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// BalanceReader 余额查询，由链客户端实现
type BalanceReader interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// LiabilityLogic 负债账本 / 余额守卫。
// 在创建新的资金承诺前，把出资人已承诺未支付的总额与链上余额比对，
// 避免领取时才在链上失败、错误远离成因。
// 检查和落库在同一把 funder+token 锁内完成，并发批准不会各自读到
// 同一份余额后重复承诺。
type LiabilityLogic struct {
	db      *gorm.DB
	balance BalanceReader

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLiabilityLogic 创建负债账本
func NewLiabilityLogic(db *gorm.DB, balance BalanceReader) *LiabilityLogic {
	return &LiabilityLogic{
		db:      db,
		balance: balance,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Outstanding 出资人在指定代币上已承诺未支付的总额：
// 尚未广播的 pending 支付，加上未领取的待领支付
func (l *LiabilityLogic) Outstanding(funderUserID uint, token string) (*big.Int, error) {
	var payouts []model.Payout
	err := l.db.Where("payer_user_id = ? AND token_address = ? AND status = ? AND tx_hash = ''",
		funderUserID, token, model.PayoutStatusPending).Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("load pending payouts: %w", err)
	}

	total := new(big.Int)
	for i := range payouts {
		total.Add(total, payouts[i].Amount.Big())
	}
	return total, nil
}

// Reserve 余额守卫下的预留提交。commit 在 funder+token 锁内执行，
// 其落库的承诺会被后续 Outstanding 计入。
// 余额不足时返回 InsufficientBalanceError，带余额/所需/缺口三个值。
func (l *LiabilityLogic) Reserve(
	ctx context.Context,
	funderUserID uint,
	funderWallet common.Address,
	token string,
	amount *big.Int,
	commit func() error,
) error {
	unlock := l.lock(funderUserID, token)
	defer unlock()

	outstanding, err := l.Outstanding(funderUserID, token)
	if err != nil {
		return err
	}

	balance, err := l.balance.TokenBalance(ctx, common.HexToAddress(token), funderWallet)
	if err != nil {
		return fmt.Errorf("read funder balance: %w", err)
	}

	required := new(big.Int).Add(outstanding, amount)
	if balance.Cmp(required) < 0 {
		return &apperr.InsufficientBalanceError{
			Token:     token,
			Balance:   balance,
			Required:  required,
			Shortfall: new(big.Int).Sub(required, balance),
		}
	}

	return commit()
}

// lock 取 funder+token 维度的锁，返回解锁函数
func (l *LiabilityLogic) lock(funderUserID uint, token string) func() {
	key := fmt.Sprintf("%d/%s", funderUserID, token)

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
