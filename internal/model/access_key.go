package model

import (
	"time"

	"gorm.io/gorm"
)

// AccessKey 委托签名授权：允许后端HSM或团队成员在额度内代 root 钱包花费
type AccessKey struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// 所属主体，用户或组织二选一
	OwnerUserID *uint `json:"owner_user_id" gorm:"index"`
	OwnerOrgID  *uint `json:"owner_org_id" gorm:"index"`

	// 被授权花费的账户
	RootWallet string `json:"root_wallet" gorm:"not null;index"`
	// 被授权的签名者地址（后端HSM密钥或团队成员钱包）
	KeyWallet string `json:"key_wallet" gorm:"not null"`

	Status    AccessKeyStatus `json:"status" gorm:"default:'active'"`
	ExpiresAt *time.Time      `json:"expires_at"`

	// root 钱包所有者对本次委托的签名证明，独立于后续HSM使用持久保存
	AuthorizationSig  string `json:"authorization_sig" gorm:"not null"`
	AuthorizationHash string `json:"authorization_hash" gorm:"not null"`

	// 单次使用专用密钥（claim-link 待领支付）
	Dedicated bool `json:"dedicated"`

	RevokedAt    *time.Time `json:"revoked_at"`
	RevokeReason string     `json:"revoke_reason"`
	LastUsedAt   *time.Time `json:"last_used_at"`

	// 关联
	Limits []AccessKeyLimit `json:"limits,omitempty" gorm:"foreignKey:AccessKeyID"`
}

// AccessKeyStatus 密钥状态
type AccessKeyStatus string

const (
	AccessKeyStatusActive  AccessKeyStatus = "active"  // 可用
	AccessKeyStatusRevoked AccessKeyStatus = "revoked" // 已吊销，永久不可用
)

// AccessKeyLimit 单代币花费额度，remaining 永远不超过 initial
type AccessKeyLimit struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AccessKeyID  uint   `json:"access_key_id" gorm:"not null;index:idx_key_token,unique"`
	TokenAddress string `json:"token_address" gorm:"not null;index:idx_key_token,unique"`

	InitialAmount   BigInt `json:"initial_amount" gorm:"type:numeric(78,0)"`
	RemainingAmount BigInt `json:"remaining_amount" gorm:"type:numeric(78,0)"`
}

// AccessKeyUsage 密钥使用审计记录
type AccessKeyUsage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	AccessKeyID  uint   `json:"access_key_id" gorm:"not null;index"`
	PayoutID     uint   `json:"payout_id" gorm:"not null;index"`
	TokenAddress string `json:"token_address" gorm:"not null"`
	Amount       BigInt `json:"amount" gorm:"type:numeric(78,0)"`
	TxHash       string `json:"tx_hash"`
}
