package model

import (
	"time"

	"gorm.io/gorm"
)

// Payout 支付记录，每个被批准的提交只创建一条
type Payout struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// 直接打赏时为空
	SubmissionID *uint `json:"submission_id" gorm:"index"`
	BountyID     uint  `json:"bounty_id" gorm:"not null;index"`

	RecipientUserID uint `json:"recipient_user_id" gorm:"not null;index"`
	PayerUserID     uint `json:"payer_user_id" gorm:"not null;index"`

	// 收款地址，收款人还没有钱包时为空，认领后补填
	RecipientAddress *string `json:"recipient_address"`

	Amount       BigInt `json:"amount" gorm:"type:numeric(78,0)"`
	TokenAddress string `json:"token_address" gorm:"not null"`

	Status PayoutStatus `json:"status" gorm:"default:'pending'"`
	TxHash string       `json:"tx_hash" gorm:"index"`

	ConfirmedAt *time.Time `json:"confirmed_at"`

	// 托管钱包路径
	CustodialWalletID *uint `json:"custodial_wallet_id"`
	IsCustodial       bool  `json:"is_custodial"`

	FailReason string `json:"fail_reason"`

	// 关联
	Bounty Bounty `json:"bounty,omitempty" gorm:"foreignKey:BountyID"`
}

// PayoutStatus 支付状态
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"   // 待确认
	PayoutStatusConfirmed PayoutStatus = "confirmed" // 已确认
	PayoutStatusFailed    PayoutStatus = "failed"    // 失败（可重试）
)
