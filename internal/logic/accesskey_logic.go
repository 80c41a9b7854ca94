package logic

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/model"
	"github.com/wozhendeai/grip-sub002/internal/txcodec"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// AccessKeyLogic 委托密钥生命周期：创建、校验、额度扣减、吊销
type AccessKeyLogic struct {
	db *gorm.DB
}

// NewAccessKeyLogic 创建密钥业务逻辑
func NewAccessKeyLogic(db *gorm.DB) *AccessKeyLogic {
	return &AccessKeyLogic{db: db}
}

// CreateAccessKeyParams 创建参数
type CreateAccessKeyParams struct {
	OwnerUserID *uint
	OwnerOrgID  *uint
	RootWallet  string
	KeyWallet   string
	// token地址 -> 初始额度（同时是初始remaining）
	Limits    map[string]*big.Int
	ExpiresAt *time.Time
	ChainID   *big.Int
	// root 钱包所有者对授权消息的签名，十六进制
	AuthorizationSig string
	Dedicated        bool
}

// Create 创建委托密钥。授权消息 [chainId, keyType, keyId, expiry?, limits?]
// 的哈希与签名作为持久凭证保存，独立于后续HSM使用。
func (a *AccessKeyLogic) Create(params CreateAccessKeyParams) (*model.AccessKey, error) {
	if params.RootWallet == "" || params.KeyWallet == "" {
		return nil, apperr.New(apperr.KindValidation, "root wallet and key wallet are required")
	}
	if len(params.Limits) == 0 {
		return nil, apperr.New(apperr.KindValidation, "at least one token limit is required")
	}
	if params.AuthorizationSig == "" {
		return nil, apperr.New(apperr.KindValidation, "authorization signature is required")
	}
	for token, amount := range params.Limits {
		if amount == nil || amount.Sign() <= 0 {
			return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("limit for token %s must be positive", token))
		}
	}

	auth := &txcodec.KeyAuthorization{
		ChainID: params.ChainID,
		KeyType: txcodec.AuthTypeSecp256k1,
		KeyID:   common.HexToAddress(params.KeyWallet),
	}
	if params.ExpiresAt != nil {
		auth.Expiry = uint64(params.ExpiresAt.Unix())
	}
	for token, amount := range params.Limits {
		auth.Limits = append(auth.Limits, txcodec.KeyLimit{
			Token:  common.HexToAddress(token),
			Amount: amount,
		})
	}
	authHash, err := txcodec.HashKeyAuthorization(auth)
	if err != nil {
		return nil, fmt.Errorf("hash key authorization: %w", err)
	}

	key := &model.AccessKey{
		OwnerUserID:       params.OwnerUserID,
		OwnerOrgID:        params.OwnerOrgID,
		RootWallet:        params.RootWallet,
		KeyWallet:         params.KeyWallet,
		Status:            model.AccessKeyStatusActive,
		ExpiresAt:         params.ExpiresAt,
		AuthorizationSig:  params.AuthorizationSig,
		AuthorizationHash: authHash.Hex(),
		Dedicated:         params.Dedicated,
	}

	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(key).Error; err != nil {
			return fmt.Errorf("create access key: %w", err)
		}
		for token, amount := range params.Limits {
			limit := &model.AccessKeyLimit{
				AccessKeyID:     key.ID,
				TokenAddress:    token,
				InitialAmount:   model.NewBigInt(amount),
				RemainingAmount: model.NewBigInt(amount),
			}
			if err := tx.Create(limit).Error; err != nil {
				return fmt.Errorf("create access key limit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return a.Get(key.ID)
}

// Get 按ID加载密钥及额度
func (a *AccessKeyLogic) Get(id uint) (*model.AccessKey, error) {
	var key model.AccessKey
	if err := a.db.Preload("Limits").First(&key, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("access key %d not found", id))
		}
		return nil, fmt.Errorf("load access key: %w", err)
	}
	return &key, nil
}

// ListForOwner 列出用户的密钥
func (a *AccessKeyLogic) ListForOwner(userID uint) ([]model.AccessKey, error) {
	var keys []model.AccessKey
	if err := a.db.Preload("Limits").Where("owner_user_id = ?", userID).Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("list access keys: %w", err)
	}
	return keys, nil
}

// FindUsable 为出资人找一把可以支付 amount 的活跃非专用密钥
func (a *AccessKeyLogic) FindUsable(rootWallet, token string, amount *big.Int) (*model.AccessKey, error) {
	var keys []model.AccessKey
	err := a.db.Preload("Limits").
		Where("root_wallet = ? AND status = ? AND dedicated = ?", rootWallet, model.AccessKeyStatusActive, false).
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("find access keys: %w", err)
	}

	for i := range keys {
		if a.Validate(&keys[i], token, amount) == nil {
			return &keys[i], nil
		}
	}
	return nil, nil
}

// Validate 使用前校验：active、未过期、额度足够。
// 吊销过的密钥即使状态被误改回 active 也永久不可用。
func (a *AccessKeyLogic) Validate(key *model.AccessKey, token string, amount *big.Int) error {
	if key.Status != model.AccessKeyStatusActive || key.RevokedAt != nil {
		return apperr.New(apperr.KindExpiredOrRevokedKey, fmt.Sprintf("access key %d is revoked", key.ID))
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return apperr.New(apperr.KindExpiredOrRevokedKey, fmt.Sprintf("access key %d is expired", key.ID))
	}

	for i := range key.Limits {
		if key.Limits[i].TokenAddress == token {
			if key.Limits[i].RemainingAmount.Big().Cmp(amount) < 0 {
				return apperr.New(apperr.KindValidation,
					fmt.Sprintf("access key %d limit exceeded for token %s", key.ID, token))
			}
			return nil
		}
	}
	return apperr.New(apperr.KindValidation,
		fmt.Sprintf("access key %d has no limit for token %s", key.ID, token))
}

// Consume 签名前的额度预留：原子扣减该代币的 remaining、
// 记录 lastUsedAt、追加审计条目（tx哈希广播成功后回填）。
// 扣减带余量条件，两笔并发支付不可能都通过而超出授权额度，
// 超额的那笔在广播之前就被拒绝。
func (a *AccessKeyLogic) Consume(keyID uint, token string, amount *big.Int, payoutID uint) (*model.AccessKeyUsage, error) {
	usage := &model.AccessKeyUsage{
		AccessKeyID:  keyID,
		PayoutID:     payoutID,
		TokenAddress: token,
		Amount:       model.NewBigInt(amount),
	}
	err := a.db.Transaction(func(tx *gorm.DB) error {
		// CAST 让 postgres 和 sqlite 都能对 numeric 列做运算
		res := tx.Model(&model.AccessKeyLimit{}).
			Where("access_key_id = ? AND token_address = ? AND remaining_amount >= CAST(? AS NUMERIC)",
				keyID, token, amount.String()).
			Update("remaining_amount", gorm.Expr("remaining_amount - CAST(? AS NUMERIC)", amount.String()))
		if res.Error != nil {
			return fmt.Errorf("decrement access key limit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindExpiredOrRevokedKey,
				fmt.Sprintf("access key %d limit exhausted for token %s", keyID, token))
		}

		now := time.Now()
		if err := tx.Model(&model.AccessKey{}).Where("id = ?", keyID).
			Update("last_used_at", &now).Error; err != nil {
			return fmt.Errorf("stamp access key usage: %w", err)
		}

		if err := tx.Create(usage).Error; err != nil {
			return fmt.Errorf("create access key audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// Refund 签名或广播失败后退还预留的额度并撤销审计条目
func (a *AccessKeyLogic) Refund(usage *model.AccessKeyUsage) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AccessKeyLimit{}).
			Where("access_key_id = ? AND token_address = ?", usage.AccessKeyID, usage.TokenAddress).
			Update("remaining_amount", gorm.Expr("remaining_amount + CAST(? AS NUMERIC)", usage.Amount.String()))
		if res.Error != nil {
			return fmt.Errorf("refund access key limit: %w", res.Error)
		}
		if err := tx.Delete(&model.AccessKeyUsage{}, usage.ID).Error; err != nil {
			return fmt.Errorf("delete access key audit entry: %w", err)
		}
		return nil
	})
}

// RecordBroadcast 广播成功后把tx哈希回填到审计条目
func (a *AccessKeyLogic) RecordBroadcast(usageID uint, txHash string) error {
	err := a.db.Model(&model.AccessKeyUsage{}).Where("id = ?", usageID).
		Update("tx_hash", txHash).Error
	if err != nil {
		return fmt.Errorf("record tx hash on audit entry: %w", err)
	}
	return nil
}

// Revoke 吊销密钥。永久生效，没有任何恢复路径。
func (a *AccessKeyLogic) Revoke(keyID uint, reason string) error {
	now := time.Now()
	err := a.db.Model(&model.AccessKey{}).Where("id = ?", keyID).Updates(map[string]interface{}{
		"status":        model.AccessKeyStatusRevoked,
		"revoked_at":    &now,
		"revoke_reason": reason,
	}).Error
	if err != nil {
		return fmt.Errorf("revoke access key: %w", err)
	}
	return nil
}

// CreateDedicated 创建单次使用专用密钥，额度精确等于一笔支付金额
func (a *AccessKeyLogic) CreateDedicated(
	ownerUserID uint,
	rootWallet, keyWallet, token string,
	amount *big.Int,
	expiresAt time.Time,
	chainID *big.Int,
	authorizationSig string,
) (*model.AccessKey, error) {
	return a.Create(CreateAccessKeyParams{
		OwnerUserID:      &ownerUserID,
		RootWallet:       rootWallet,
		KeyWallet:        keyWallet,
		Limits:           map[string]*big.Int{token: amount},
		ExpiresAt:        &expiresAt,
		ChainID:          chainID,
		AuthorizationSig: authorizationSig,
		Dedicated:        true,
	})
}
