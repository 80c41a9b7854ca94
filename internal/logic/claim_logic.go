package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/logger"
	"github.com/wozhendeai/grip-sub002/internal/memo"
	"github.com/wozhendeai/grip-sub002/internal/model"
	"github.com/wozhendeai/grip-sub002/internal/signing"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// KeyStore 按引用取回托管钱包的签名器
type KeyStore interface {
	HSMFor(keyRef string) (signing.HSM, error)
}

// ClaimLogic 待领支付与托管钱包的领取
type ClaimLogic struct {
	db      *gorm.DB
	payouts *PayoutLogic
	keys    KeyStore
}

// NewClaimLogic 创建领取业务逻辑
func NewClaimLogic(db *gorm.DB, payouts *PayoutLogic, keys KeyStore) *ClaimLogic {
	return &ClaimLogic{db: db, payouts: payouts, keys: keys}
}

// ClaimResult 领取结果
type ClaimResult struct {
	PayoutID uint   `json:"payout_id"`
	TxHash   string `json:"tx_hash"`
	Amount   string `json:"amount"`
	Token    string `json:"token"`
}

// Claim 收款人提供钱包地址，用专用密钥代表出资人签名转账。
// 专用密钥单次使用，签名成功后立即吊销。
func (c *ClaimLogic) Claim(ctx context.Context, claimToken, walletAddress string) (*ClaimResult, error) {
	if !common.IsHexAddress(walletAddress) {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("invalid wallet address %q", walletAddress))
	}

	var pending model.PendingPayment
	err := c.db.Where("claim_token = ?", claimToken).First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.claimCustodial(ctx, claimToken, walletAddress)
		}
		return nil, fmt.Errorf("load pending payment: %w", err)
	}

	if pending.Status == model.PendingPaymentStatusClaimed {
		return nil, apperr.New(apperr.KindConflict, "this payment has already been claimed")
	}
	if pending.Status == model.PendingPaymentStatusExpired || time.Now().After(pending.ClaimExpiresAt) {
		return nil, apperr.New(apperr.KindExpiredOrRevokedKey,
			"this claim link has expired; ask the funder to approve the payout again")
	}

	payout, err := c.payouts.GetPayout(pending.PayoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != model.PayoutStatusPending || payout.TxHash != "" {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("payout %d is already in flight", payout.ID))
	}
	// 另一份提交的支付抢先上链时这条领取链接作废
	if err := c.payouts.ensureNoCompetingPayout(payout.BountyID, payout.SubmissionID); err != nil {
		return nil, err
	}

	key, err := c.payouts.accessKeys.Get(pending.AccessKeyID)
	if err != nil {
		return nil, err
	}

	bounty, err := c.payouts.loadBounty(payout.BountyID)
	if err != nil {
		return nil, err
	}
	recipient, err := c.payouts.loadUser(payout.RecipientUserID)
	if err != nil {
		return nil, err
	}

	var prNumber uint64
	if payout.SubmissionID != nil {
		var sub model.Submission
		if err := c.db.First(&sub, *payout.SubmissionID).Error; err == nil {
			prNumber = uint64(sub.PRNumber)
		}
	}

	payMemo := memo.EncodeBounty(memo.BountyMemo{
		IssueNumber: uint64(bounty.IssueNumber),
		PRNumber:    prNumber,
		Handle:      recipient.GithubHandle,
	})

	amount := payout.Amount.Big()
	data, err := c.payouts.chain.TransferCallData(common.HexToAddress(walletAddress), amount, payMemo)
	if err != nil {
		return nil, fmt.Errorf("build transfer data: %w", err)
	}

	payout.RecipientAddress = &walletAddress
	if err := c.db.Save(payout).Error; err != nil {
		return nil, fmt.Errorf("save payout recipient: %w", err)
	}

	signed, err := c.payouts.signAndBroadcast(ctx, key.RootWallet, payout, key, data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pending.Status = model.PendingPaymentStatusClaimed
	pending.ClaimedAt = &now
	pending.ClaimedByUserID = &recipient.ID
	if err := c.db.Save(&pending).Error; err != nil {
		return nil, fmt.Errorf("save pending payment: %w", err)
	}

	// 记住收款人的钱包，下次直接走正常路径
	if recipient.WalletAddress == nil {
		recipient.WalletAddress = &walletAddress
		if err := c.db.Save(recipient).Error; err != nil {
			logger.Warn("Failed to persist wallet for user %d: %v", recipient.ID, err)
		}
	}

	logger.Info("Pending payment %d claimed by %s, tx %s", pending.ID, walletAddress, signed.Hash.Hex())
	return &ClaimResult{
		PayoutID: payout.ID,
		TxHash:   signed.Hash.Hex(),
		Amount:   payout.Amount.String(),
		Token:    payout.TokenAddress,
	}, nil
}

// claimCustodial 从平台托管钱包把余额划转到收款人自己的地址
func (c *ClaimLogic) claimCustodial(ctx context.Context, claimToken, walletAddress string) (*ClaimResult, error) {
	var wallet model.CustodialWallet
	err := c.db.Where("claim_token = ?", claimToken).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "unknown claim token")
		}
		return nil, fmt.Errorf("load custodial wallet: %w", err)
	}
	if wallet.ClaimedAt != nil {
		return nil, apperr.New(apperr.KindConflict, "this wallet has already been claimed")
	}

	var payout model.Payout
	err = c.db.Where("custodial_wallet_id = ? AND status = ?", wallet.ID, model.PayoutStatusConfirmed).
		Order("id DESC").First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindConflict,
				"the custodial payment has not been confirmed yet; try again shortly")
		}
		return nil, fmt.Errorf("load custodial payout: %w", err)
	}

	hsm, err := c.keys.HSMFor(wallet.KeyRef)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSigning, "open custodial key", err)
	}

	token := common.HexToAddress(payout.TokenAddress)
	custodialAddr := common.HexToAddress(wallet.Address)
	balance, err := c.payouts.chain.TokenBalance(ctx, token, custodialAddr)
	if err != nil {
		return nil, fmt.Errorf("read custodial balance: %w", err)
	}
	if balance.Sign() <= 0 {
		return nil, apperr.New(apperr.KindConflict, "custodial wallet has no balance to claim")
	}

	sweepMemo := memo.EncodeText("custodial claim")
	data, err := c.payouts.chain.TransferCallData(common.HexToAddress(walletAddress), balance, sweepMemo)
	if err != nil {
		return nil, fmt.Errorf("build transfer data: %w", err)
	}

	signed, err := c.payouts.sweepCustodial(ctx, hsm, custodialAddr, token, data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	wallet.ClaimedAt = &now
	wallet.ClaimedByUserID = &payout.RecipientUserID
	if err := c.db.Save(&wallet).Error; err != nil {
		return nil, fmt.Errorf("save custodial wallet: %w", err)
	}

	logger.Info("Custodial wallet %d swept to %s, tx %s", wallet.ID, walletAddress, signed.Hash.Hex())
	return &ClaimResult{
		PayoutID: payout.ID,
		TxHash:   signed.Hash.Hex(),
		Amount:   balance.String(),
		Token:    payout.TokenAddress,
	}, nil
}

// ExpireStale 把过期的待领支付标记为expired并吊销其专用密钥
func (c *ClaimLogic) ExpireStale() (int, error) {
	var stale []model.PendingPayment
	err := c.db.Where("status = ? AND claim_expires_at < ?", model.PendingPaymentStatusPending, time.Now()).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("load stale pending payments: %w", err)
	}

	for i := range stale {
		pp := &stale[i]
		pp.Status = model.PendingPaymentStatusExpired
		if err := c.db.Save(pp).Error; err != nil {
			return 0, fmt.Errorf("expire pending payment %d: %w", pp.ID, err)
		}
		if err := c.payouts.accessKeys.Revoke(pp.AccessKeyID, "claim link expired"); err != nil {
			logger.Warn("Failed to revoke access key %d for expired claim %d: %v", pp.AccessKeyID, pp.ID, err)
		}
		logger.Info("Expired pending payment %d (access key %d revoked)", pp.ID, pp.AccessKeyID)
	}
	return len(stale), nil
}
