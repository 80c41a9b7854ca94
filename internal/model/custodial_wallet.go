package model

import (
	"time"

	"gorm.io/gorm"
)

// CustodialWallet 托管钱包：为只有 GitHub 身份的收款人惰性创建，
// 平台代持资金直到本人注册并凭 claim token 领取
type CustodialWallet struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// 外部 GitHub 用户标识
	GithubUserID string `json:"github_user_id" gorm:"not null;index"`

	Address string `json:"address" gorm:"not null;uniqueIndex"`
	// 托管私钥的外部引用（KMS key id），私钥本身不落库
	KeyRef string `json:"key_ref" gorm:"not null"`

	ClaimToken      string     `json:"claim_token" gorm:"not null;uniqueIndex"`
	ClaimedByUserID *uint      `json:"claimed_by_user_id"`
	ClaimedAt       *time.Time `json:"claimed_at"`
}
