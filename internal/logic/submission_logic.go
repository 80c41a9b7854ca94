package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/model"

	"gorm.io/gorm"
)

// SubmissionLogic 提交解析与批准状态机
type SubmissionLogic struct {
	db *gorm.DB
}

// NewSubmissionLogic 创建提交业务逻辑
func NewSubmissionLogic(db *gorm.DB) *SubmissionLogic {
	return &SubmissionLogic{db: db}
}

// Resolve 解析批准动作指向哪个提交。纯查询，不改任何状态，可重复调用。
//   - 指定了提交ID: 必须属于该悬赏，否则 InvalidSubmission
//   - 未指定: 活跃提交恰好一个时自动选中；零个报 NoActiveSubmissions；
//     多个报 AmbiguousSubmissions 并附候选列表供调用方带ID重试
func (s *SubmissionLogic) Resolve(bountyID uint, explicitID *uint) (*model.Submission, error) {
	if explicitID != nil {
		var sub model.Submission
		if err := s.db.First(&sub, *explicitID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("submission %d not found", *explicitID))
			}
			return nil, fmt.Errorf("load submission: %w", err)
		}
		if sub.BountyID != bountyID {
			return nil, apperr.New(apperr.KindValidation,
				fmt.Sprintf("submission %d does not belong to bounty %d", *explicitID, bountyID))
		}
		return &sub, nil
	}

	var active []model.Submission
	err := s.db.Where("bounty_id = ? AND status IN ?", bountyID, []model.SubmissionStatus{
		model.SubmissionStatusPending,
		model.SubmissionStatusApproved,
		model.SubmissionStatusMerged,
	}).Order("created_at asc").Find(&active).Error
	if err != nil {
		return nil, fmt.Errorf("load active submissions: %w", err)
	}

	switch len(active) {
	case 0:
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("bounty %d has no active submissions", bountyID))
	case 1:
		return &active[0], nil
	default:
		candidates := make([]apperr.SubmissionCandidate, 0, len(active))
		for _, sub := range active {
			candidates = append(candidates, apperr.SubmissionCandidate{
				SubmissionID: sub.ID,
				UserID:       sub.UserID,
				PRNumber:     sub.PRNumber,
				SubmittedAt:  sub.CreatedAt,
			})
		}
		return nil, &apperr.AmbiguousSubmissionsError{BountyID: bountyID, Candidates: candidates}
	}
}

// ApproveAsFunder 出资人批准。幂等：重复批准不报错不重复记录。
// 批准一旦落库即生效，后续签名失败绝不回滚。
func (s *SubmissionLogic) ApproveAsFunder(sub *model.Submission, bounty *model.Bounty, actorID uint) error {
	return s.approve(sub, bounty, actorID, false)
}

// ApproveAsOwner 仓库所有者批准。与出资人批准对称、顺序无关；
// 只有出资人批准已存在时才会把状态推进到 approved。
func (s *SubmissionLogic) ApproveAsOwner(sub *model.Submission, bounty *model.Bounty, actorID uint) error {
	return s.approve(sub, bounty, actorID, true)
}

func (s *SubmissionLogic) approve(sub *model.Submission, bounty *model.Bounty, actorID uint, asOwner bool) error {
	switch sub.Status {
	case model.SubmissionStatusRejected:
		return apperr.New(apperr.KindConflict, fmt.Sprintf("submission %d is rejected", sub.ID))
	case model.SubmissionStatusExpired:
		return apperr.New(apperr.KindConflict, fmt.Sprintf("submission %d is expired", sub.ID))
	case model.SubmissionStatusPaid:
		return apperr.New(apperr.KindConflict, fmt.Sprintf("submission %d is already paid", sub.ID))
	}

	now := time.Now()
	if asOwner {
		if sub.OwnerApprovedAt == nil {
			sub.OwnerApprovedAt = &now
			sub.OwnerApprovedBy = &actorID
		}
	} else {
		if sub.FunderApprovedAt == nil {
			sub.FunderApprovedAt = &now
			sub.FunderApprovedBy = &actorID
		}
	}

	// 两侧批准齐备（或仓库不要求owner批准）才推进到 approved
	if sub.Status == model.SubmissionStatusPending && s.fullyApproved(sub, bounty) {
		sub.Status = model.SubmissionStatusApproved
	}

	if err := s.db.Save(sub).Error; err != nil {
		return fmt.Errorf("save submission approval: %w", err)
	}
	return nil
}

// fullyApproved 批准条件是否满足
func (s *SubmissionLogic) fullyApproved(sub *model.Submission, bounty *model.Bounty) bool {
	if sub.FunderApprovedAt == nil {
		return false
	}
	if bounty.RequireOwnerApproval && sub.OwnerApprovedAt == nil {
		return false
	}
	return true
}

// Reject 驳回提交。终态，与批准互斥：已批准的提交不允许驳回。
func (s *SubmissionLogic) Reject(sub *model.Submission, actorID uint, reason string) error {
	switch sub.Status {
	case model.SubmissionStatusPending:
		// 允许驳回
	case model.SubmissionStatusRejected:
		return nil // 幂等
	default:
		return apperr.New(apperr.KindConflict,
			fmt.Sprintf("submission %d in status %s cannot be rejected", sub.ID, sub.Status))
	}

	now := time.Now()
	sub.Status = model.SubmissionStatusRejected
	sub.RejectedAt = &now
	sub.RejectedBy = &actorID
	sub.RejectReason = reason

	if err := s.db.Save(sub).Error; err != nil {
		return fmt.Errorf("save submission rejection: %w", err)
	}
	return nil
}

// MarkMerged 外部 GitHub 事件流通知 PR 已合并
func (s *SubmissionLogic) MarkMerged(sub *model.Submission) error {
	if sub.Status != model.SubmissionStatusApproved {
		return apperr.New(apperr.KindConflict,
			fmt.Sprintf("submission %d in status %s cannot be merged", sub.ID, sub.Status))
	}
	now := time.Now()
	sub.Status = model.SubmissionStatusMerged
	sub.MergedAt = &now
	if err := s.db.Save(sub).Error; err != nil {
		return fmt.Errorf("save submission merge: %w", err)
	}
	return nil
}

// MarkPaid 支付确认后标记。每个悬赏最多一个提交能到达 paid。
func (s *SubmissionLogic) MarkPaid(sub *model.Submission) error {
	switch sub.Status {
	case model.SubmissionStatusApproved, model.SubmissionStatusMerged:
	case model.SubmissionStatusPaid:
		return nil
	default:
		return apperr.New(apperr.KindConflict,
			fmt.Sprintf("submission %d in status %s cannot be marked paid", sub.ID, sub.Status))
	}

	var paid int64
	if err := s.db.Model(&model.Submission{}).
		Where("bounty_id = ? AND status = ? AND id <> ?", sub.BountyID, model.SubmissionStatusPaid, sub.ID).
		Count(&paid).Error; err != nil {
		return fmt.Errorf("count paid submissions: %w", err)
	}
	if paid > 0 {
		return apperr.New(apperr.KindConflict,
			fmt.Sprintf("bounty %d already has a paid submission", sub.BountyID))
	}

	sub.Status = model.SubmissionStatusPaid
	if err := s.db.Save(sub).Error; err != nil {
		return fmt.Errorf("save submission paid: %w", err)
	}
	return nil
}

// ExpireForBounty 悬赏取消时，除 paid 外的全部提交转为 expired
func (s *SubmissionLogic) ExpireForBounty(bountyID uint) error {
	err := s.db.Model(&model.Submission{}).
		Where("bounty_id = ? AND status <> ?", bountyID, model.SubmissionStatusPaid).
		Update("status", model.SubmissionStatusExpired).Error
	if err != nil {
		return fmt.Errorf("expire submissions: %w", err)
	}
	return nil
}
