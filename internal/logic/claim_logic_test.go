package logic

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/model"
	"github.com/wozhendeai/grip-sub002/internal/signing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedClaimLink 走完批准流程拿到一条待领支付
func seedClaimLink(t *testing.T, db *gorm.DB, chain *fakeChain, hsm signing.HSM) (*PayoutLogic, *ClaimLogic, *fixture, *model.PendingPayment) {
	t.Helper()
	fx := seedBounty(t, db, 1000, false)
	chain.setBalance(mustAddr(funderAddr), big.NewInt(10_000))

	keyStore := signing.NewLocalKeyStore()
	payouts := NewPayoutLogic(db, chain, hsm, keyStore, testConfig())
	claims := NewClaimLogic(db, payouts, keyStore)

	_, err := payouts.Approve(context.Background(), ApproveParams{
		BountyID:            fx.bounty.ID,
		ActorUserID:         fx.funder.ID,
		KeyAuthorizationSig: "0xauth",
	})
	require.NoError(t, err)

	var pending model.PendingPayment
	require.NoError(t, db.First(&pending).Error)
	return payouts, claims, fx, &pending
}

func TestClaimPaysAndRevokesDedicatedKey(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain()
	hsm := newTestHSM(t)
	payouts, claims, fx, pending := seedClaimLink(t, db, chain, hsm)

	result, err := claims.Claim(context.Background(), pending.ClaimToken, hunterAddr)
	require.NoError(t, err)
	assert.NotEmpty(t, result.TxHash)
	assert.Equal(t, "1000", result.Amount)
	assert.Equal(t, 1, chain.broadcastCount())

	payout, err := payouts.GetPayout(result.PayoutID)
	require.NoError(t, err)
	require.NotNil(t, payout.RecipientAddress)
	assert.Equal(t, hunterAddr, *payout.RecipientAddress)

	// 待领记录转为claimed，专用密钥用后即吊销
	var reloaded model.PendingPayment
	require.NoError(t, db.First(&reloaded, pending.ID).Error)
	assert.Equal(t, model.PendingPaymentStatusClaimed, reloaded.Status)
	require.NotNil(t, reloaded.ClaimedByUserID)
	assert.Equal(t, fx.hunter.ID, *reloaded.ClaimedByUserID)

	var key model.AccessKey
	require.NoError(t, db.First(&key, pending.AccessKeyID).Error)
	assert.Equal(t, model.AccessKeyStatusRevoked, key.Status)

	// 钱包地址记到用户档案，后续直接走正常路径
	var hunter model.User
	require.NoError(t, db.First(&hunter, fx.hunter.ID).Error)
	require.NotNil(t, hunter.WalletAddress)
	assert.Equal(t, hunterAddr, *hunter.WalletAddress)

	// 重复领取拒绝
	_, err = claims.Claim(context.Background(), pending.ClaimToken, hunterAddr)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestClaimRefusedWhenAnotherPayoutInFlight(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain()
	hsm := newTestHSM(t)
	payouts, claims, fx, pending := seedClaimLink(t, db, chain, hsm)

	// 第二份提交也走了claim链接兜底
	rival := &model.User{GithubUserID: "gh-rival", GithubHandle: "rival"}
	require.NoError(t, db.Create(rival).Error)
	sub2 := &model.Submission{
		BountyID: fx.bounty.ID,
		UserID:   rival.ID,
		PRNumber: 8,
		Status:   model.SubmissionStatusPending,
	}
	require.NoError(t, db.Create(sub2).Error)

	result2, err := payouts.Approve(context.Background(), ApproveParams{
		BountyID:            fx.bounty.ID,
		SubmissionID:        &sub2.ID,
		ActorUserID:         fx.funder.ID,
		KeyAuthorizationSig: "0xauth",
	})
	require.NoError(t, err)

	var pending2 model.PendingPayment
	require.NoError(t, db.Where("payout_id = ?", result2.PayoutID).First(&pending2).Error)

	_, err = claims.Claim(context.Background(), pending.ClaimToken, hunterAddr)
	require.NoError(t, err)

	// 第一笔已上链，第二条领取链接不能再付一遍
	_, err = claims.Claim(context.Background(), pending2.ClaimToken, "0x4000000000000000000000000000000000000004")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 1, chain.broadcastCount(), "bounty must never pay out twice")
}

func TestClaimInvalidAddress(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain()
	hsm := newTestHSM(t)
	_, claims, _, pending := seedClaimLink(t, db, chain, hsm)

	_, err := claims.Claim(context.Background(), pending.ClaimToken, "not-an-address")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestClaimUnknownToken(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain()
	hsm := newTestHSM(t)
	keyStore := signing.NewLocalKeyStore()
	payouts := NewPayoutLogic(db, chain, hsm, keyStore, testConfig())
	claims := NewClaimLogic(db, payouts, keyStore)

	_, err := claims.Claim(context.Background(), "no-such-token", hunterAddr)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestClaimCustodialSweepsBalance(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain()
	hsm := newTestHSM(t)
	fx := seedBounty(t, db, 1000, false)
	chain.setBalance(mustAddr(funderAddr), big.NewInt(10_000))
	seedAccessKey(t, db, fx.funder.ID, hsm, 5000)

	cfg := testConfig()
	cfg.Payout.FallbackStrategy = "custodial"
	keyStore := signing.NewLocalKeyStore()
	payouts := NewPayoutLogic(db, chain, hsm, keyStore, cfg)
	claims := NewClaimLogic(db, payouts, keyStore)

	result, err := payouts.Approve(context.Background(), ApproveParams{
		BountyID:     fx.bounty.ID,
		ActorUserID:  fx.funder.ID,
		UseAccessKey: true,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeCustodial, result.Outcome)

	var wallet model.CustodialWallet
	require.NoError(t, db.First(&wallet).Error)

	// 托管支付确认之前不能领取
	_, err = claims.Claim(context.Background(), wallet.ClaimToken, hunterAddr)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	require.NoError(t, db.Model(&model.Payout{}).Where("id = ?", result.PayoutID).
		Update("status", model.PayoutStatusConfirmed).Error)
	chain.setBalance(mustAddr(wallet.Address), big.NewInt(1000))

	claimed, err := claims.Claim(context.Background(), wallet.ClaimToken, hunterAddr)
	require.NoError(t, err)
	assert.Equal(t, "1000", claimed.Amount)
	assert.Equal(t, 2, chain.broadcastCount())

	var reloaded model.CustodialWallet
	require.NoError(t, db.First(&reloaded, wallet.ID).Error)
	require.NotNil(t, reloaded.ClaimedAt)
	require.NotNil(t, reloaded.ClaimedByUserID)
	assert.Equal(t, fx.hunter.ID, *reloaded.ClaimedByUserID)
}

func TestClaimExpiredLink(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain()
	hsm := newTestHSM(t)
	_, claims, _, pending := seedClaimLink(t, db, chain, hsm)

	require.NoError(t, db.Model(pending).
		Update("claim_expires_at", time.Now().Add(-time.Hour)).Error)

	_, err := claims.Claim(context.Background(), pending.ClaimToken, hunterAddr)
	require.Error(t, err)
	assert.Equal(t, apperr.KindExpiredOrRevokedKey, apperr.KindOf(err))
}

func TestExpireStaleRevokesKeys(t *testing.T) {
	db := newTestDB(t)
	chain := newFakeChain()
	hsm := newTestHSM(t)
	_, claims, _, pending := seedClaimLink(t, db, chain, hsm)

	require.NoError(t, db.Model(pending).
		Update("claim_expires_at", time.Now().Add(-time.Hour)).Error)

	expired, err := claims.ExpireStale()
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var reloaded model.PendingPayment
	require.NoError(t, db.First(&reloaded, pending.ID).Error)
	assert.Equal(t, model.PendingPaymentStatusExpired, reloaded.Status)

	var key model.AccessKey
	require.NoError(t, db.First(&key, pending.AccessKeyID).Error)
	assert.Equal(t, model.AccessKeyStatusRevoked, key.Status)

	// 再跑一轮没有新增
	expired, err = claims.ExpireStale()
	require.NoError(t, err)
	assert.Zero(t, expired)
}
