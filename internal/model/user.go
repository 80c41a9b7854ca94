package model

import (
	"time"

	"gorm.io/gorm"
)

// User 用户模型（认证由外部系统负责，这里只保留支付需要的字段）
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	GithubUserID string `json:"github_user_id" gorm:"uniqueIndex"`
	GithubHandle string `json:"github_handle" gorm:"not null"`

	// 自有钱包地址，没有时走待领支付或托管钱包兜底
	WalletAddress *string `json:"wallet_address"`
}
