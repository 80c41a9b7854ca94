package handler

// ApproveRequest 批准提交请求
type ApproveRequest struct {
	ActorUserID  uint  `json:"actor_user_id" binding:"required"`
	SubmissionID *uint `json:"submission_id"`
	// 省略时默认走委托密钥自动签名
	UseAccessKey *bool `json:"use_access_key"`
	// 收款人无钱包且走claim链接兜底时需要
	KeyAuthorizationSig string `json:"key_authorization_sig"`
}

func (r *ApproveRequest) useAccessKey() bool {
	return r.UseAccessKey == nil || *r.UseAccessKey
}

// RejectRequest 驳回提交请求
type RejectRequest struct {
	ActorUserID  uint   `json:"actor_user_id" binding:"required"`
	SubmissionID *uint  `json:"submission_id"`
	Reason       string `json:"reason"`
}

// DirectPayRequest 直接支付请求
type DirectPayRequest struct {
	ActorUserID     uint   `json:"actor_user_id" binding:"required"`
	RecipientUserID uint   `json:"recipient_user_id" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	Message         string `json:"message"`
	// 省略时默认走委托密钥自动签名
	UseAccessKey *bool `json:"use_access_key"`
}

func (r *DirectPayRequest) useAccessKey() bool {
	return r.UseAccessKey == nil || *r.UseAccessKey
}

// CreateAccessKeyRequest 创建委托密钥请求
type CreateAccessKeyRequest struct {
	OwnerUserID      uint              `json:"owner_user_id" binding:"required"`
	RootWallet       string            `json:"root_wallet" binding:"required"`
	KeyWallet        string            `json:"key_wallet" binding:"required"`
	Limits           map[string]string `json:"limits" binding:"required"`
	ExpiresAt        *int64            `json:"expires_at"`
	AuthorizationSig string            `json:"authorization_sig" binding:"required"`
}

// RevokeAccessKeyRequest 吊销委托密钥请求
type RevokeAccessKeyRequest struct {
	ActorUserID uint   `json:"actor_user_id" binding:"required"`
	Reason      string `json:"reason"`
}

// ClaimRequest 领取待领支付请求
type ClaimRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}
