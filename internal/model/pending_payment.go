package model

import (
	"time"

	"gorm.io/gorm"
)

// PendingPayment 待领支付：资金留在出资人钱包，收款人通过 claim 链接领取。
// 背后绑定一把单次使用的专用 AccessKey，领取成功后立即吊销。
type PendingPayment struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	PayoutID    uint `json:"payout_id" gorm:"not null;uniqueIndex"`
	AccessKeyID uint `json:"access_key_id" gorm:"not null"`

	ClaimToken     string    `json:"claim_token" gorm:"not null;uniqueIndex"`
	ClaimExpiresAt time.Time `json:"claim_expires_at" gorm:"not null"`

	Status PendingPaymentStatus `json:"status" gorm:"default:'pending'"`

	ClaimedByUserID *uint      `json:"claimed_by_user_id"`
	ClaimedAt       *time.Time `json:"claimed_at"`

	// 关联
	Payout    Payout    `json:"payout,omitempty" gorm:"foreignKey:PayoutID"`
	AccessKey AccessKey `json:"access_key,omitempty" gorm:"foreignKey:AccessKeyID"`
}

// PendingPaymentStatus 待领支付状态
type PendingPaymentStatus string

const (
	PendingPaymentStatusPending PendingPaymentStatus = "pending" // 待领取
	PendingPaymentStatusClaimed PendingPaymentStatus = "claimed" // 已领取
	PendingPaymentStatusExpired PendingPaymentStatus = "expired" // 已过期
)
