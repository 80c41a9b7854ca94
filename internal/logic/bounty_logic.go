package logic

import (
	"errors"
	"fmt"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/logger"
	"github.com/wozhendeai/grip-sub002/internal/model"

	"gorm.io/gorm"
)

// BountyLogic 赏金的查询与生命周期
type BountyLogic struct {
	db          *gorm.DB
	submissions *SubmissionLogic
}

// NewBountyLogic 创建赏金业务逻辑
func NewBountyLogic(db *gorm.DB) *BountyLogic {
	return &BountyLogic{db: db, submissions: NewSubmissionLogic(db)}
}

// Get 按ID查询赏金
func (b *BountyLogic) Get(id uint) (*model.Bounty, error) {
	var bounty model.Bounty
	if err := b.db.First(&bounty, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("bounty %d not found", id))
		}
		return nil, fmt.Errorf("load bounty: %w", err)
	}
	return &bounty, nil
}

// List 分页查询赏金，status为空时不过滤
func (b *BountyLogic) List(status string, page, pageSize int) ([]model.Bounty, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := b.db.Model(&model.Bounty{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count bounties: %w", err)
	}

	var bounties []model.Bounty
	err := query.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&bounties).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list bounties: %w", err)
	}
	return bounties, total, nil
}

// ListSubmissions 查询赏金下的全部提交
func (b *BountyLogic) ListSubmissions(bountyID uint) ([]model.Submission, error) {
	if _, err := b.Get(bountyID); err != nil {
		return nil, err
	}
	var subs []model.Submission
	err := b.db.Where("bounty_id = ?", bountyID).Order("id ASC").Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// Cancel 取消赏金。只有主出资人可以取消，已有支付在途时拒绝，
// 活跃提交全部转为expired。
func (b *BountyLogic) Cancel(bountyID, actorID uint) (*model.Bounty, error) {
	bounty, err := b.Get(bountyID)
	if err != nil {
		return nil, err
	}
	if actorID != bounty.PrimaryFunderID {
		return nil, apperr.New(apperr.KindPermission,
			fmt.Sprintf("user %d is not the primary funder of bounty %d", actorID, bounty.ID))
	}
	if bounty.Status != model.BountyStatusOpen {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("bounty %d is %s", bounty.ID, bounty.Status))
	}

	var inFlight int64
	err = b.db.Model(&model.Payout{}).
		Where("bounty_id = ? AND status = ? AND tx_hash <> ''", bountyID, model.PayoutStatusPending).
		Count(&inFlight).Error
	if err != nil {
		return nil, fmt.Errorf("count in-flight payouts: %w", err)
	}
	if inFlight > 0 {
		return nil, apperr.New(apperr.KindConflict,
			fmt.Sprintf("bounty %d has a payout in flight; wait for confirmation", bountyID))
	}

	bounty.Status = model.BountyStatusCancelled
	if err := b.db.Save(bounty).Error; err != nil {
		return nil, fmt.Errorf("cancel bounty: %w", err)
	}
	if err := b.submissions.ExpireForBounty(bountyID); err != nil {
		return nil, err
	}

	logger.Info("Bounty %d cancelled by user %d", bountyID, actorID)
	return bounty, nil
}

// ListPayouts 查询赏金下的支付记录
func (b *BountyLogic) ListPayouts(bountyID uint) ([]model.Payout, error) {
	if _, err := b.Get(bountyID); err != nil {
		return nil, err
	}
	var payouts []model.Payout
	err := b.db.Where("bounty_id = ?", bountyID).Order("id ASC").Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	return payouts, nil
}
