package model

import (
	"time"

	"gorm.io/gorm"
)

// Submission 提交记录，一个悬赏可有多个竞争提交（先合并者得）
type Submission struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	BountyID uint `json:"bounty_id" gorm:"not null;index"`
	UserID   uint `json:"user_id" gorm:"not null;index"`

	// PR 信息（来自外部 GitHub 事件流）
	PRNumber int64  `json:"pr_number" gorm:"not null"`
	PRUrl    string `json:"pr_url"`

	// 状态
	Status SubmissionStatus `json:"status" gorm:"default:'pending'"`

	// 批准信息，funder 和 owner 两侧各自独立记录
	FunderApprovedAt *time.Time `json:"funder_approved_at"`
	FunderApprovedBy *uint      `json:"funder_approved_by"`
	OwnerApprovedAt  *time.Time `json:"owner_approved_at"`
	OwnerApprovedBy  *uint      `json:"owner_approved_by"`

	// 驳回信息
	RejectedAt   *time.Time `json:"rejected_at"`
	RejectedBy   *uint      `json:"rejected_by"`
	RejectReason string     `json:"reject_reason"`

	MergedAt *time.Time `json:"merged_at"`

	// 关联
	Bounty Bounty `json:"bounty,omitempty" gorm:"foreignKey:BountyID"`
}

// SubmissionStatus 提交状态
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"  // 待批准
	SubmissionStatusApproved SubmissionStatus = "approved" // 已批准
	SubmissionStatusRejected SubmissionStatus = "rejected" // 已驳回
	SubmissionStatusMerged   SubmissionStatus = "merged"   // 已合并
	SubmissionStatusPaid     SubmissionStatus = "paid"     // 已支付
	SubmissionStatusExpired  SubmissionStatus = "expired"  // 已失效
)

// Active 提交是否仍有资格胜出
func (s SubmissionStatus) Active() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusApproved, SubmissionStatusMerged:
		return true
	}
	return false
}
