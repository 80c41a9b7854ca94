package model

import (
	"time"

	"gorm.io/gorm"
)

// Bounty 悬赏模型，绑定一个 GitHub issue
type Bounty struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// 基本信息
	RepoOwner   string `json:"repo_owner" gorm:"not null"`
	RepoName    string `json:"repo_name" gorm:"not null"`
	IssueNumber int64  `json:"issue_number" gorm:"not null"`
	Title       string `json:"title"`

	// 资金信息
	TotalFunded  BigInt `json:"total_funded" gorm:"type:numeric(78,0)"`
	TokenAddress string `json:"token_address" gorm:"not null"`

	// 唯一主出资人，只有它能批准提交
	PrimaryFunderID uint `json:"primary_funder_id" gorm:"not null;index"`

	// 是否要求仓库 owner 二次批准
	RequireOwnerApproval bool `json:"require_owner_approval"`
	RepoOwnerUserID      uint `json:"repo_owner_user_id"`

	// 状态
	Status BountyStatus `json:"status" gorm:"default:'open'"`

	// 关联
	Submissions []Submission `json:"submissions,omitempty" gorm:"foreignKey:BountyID"`
	Payouts     []Payout     `json:"payouts,omitempty" gorm:"foreignKey:BountyID"`
}

// BountyStatus 悬赏状态
type BountyStatus string

const (
	BountyStatusOpen      BountyStatus = "open"      // 开放中
	BountyStatusCompleted BountyStatus = "completed" // 已完成
	BountyStatusCancelled BountyStatus = "cancelled" // 已取消
)
