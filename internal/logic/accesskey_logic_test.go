package logic

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccessKeyValidation(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	owner := uint(1)

	_, err := keys.Create(CreateAccessKeyParams{
		OwnerUserID: &owner, RootWallet: funderAddr, KeyWallet: hunterAddr,
		Limits:           map[string]*big.Int{},
		AuthorizationSig: "0xsig",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = keys.Create(CreateAccessKeyParams{
		OwnerUserID: &owner, RootWallet: funderAddr, KeyWallet: hunterAddr,
		Limits: map[string]*big.Int{testToken: big.NewInt(-5)},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	key, err := keys.Create(CreateAccessKeyParams{
		OwnerUserID: &owner, RootWallet: funderAddr, KeyWallet: hunterAddr,
		Limits:           map[string]*big.Int{testToken: big.NewInt(500)},
		ChainID:          big.NewInt(84532),
		AuthorizationSig: "0xsig",
	})
	require.NoError(t, err)
	require.Len(t, key.Limits, 1)
	assert.Equal(t, "500", key.Limits[0].RemainingAmount.String())
	assert.NotEmpty(t, key.AuthorizationHash)
}

func TestFindUsableRespectsLimitAndExpiry(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	hsm := newTestHSM(t)
	seedAccessKey(t, db, 1, hsm, 500)

	key, err := keys.FindUsable(funderAddr, testToken, big.NewInt(400))
	require.NoError(t, err)
	require.NotNil(t, key)

	// 超出额度
	key, err = keys.FindUsable(funderAddr, testToken, big.NewInt(600))
	require.NoError(t, err)
	assert.Nil(t, key)

	// 其它代币没有额度
	key, err = keys.FindUsable(funderAddr, "0xother", big.NewInt(1))
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestFindUsableSkipsExpired(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	owner := uint(1)
	past := time.Now().Add(-time.Hour)

	_, err := keys.Create(CreateAccessKeyParams{
		OwnerUserID: &owner, RootWallet: funderAddr, KeyWallet: hunterAddr,
		Limits:           map[string]*big.Int{testToken: big.NewInt(500)},
		ExpiresAt:        &past,
		ChainID:          big.NewInt(84532),
		AuthorizationSig: "0xsig",
	})
	require.NoError(t, err)

	key, err := keys.FindUsable(funderAddr, testToken, big.NewInt(1))
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestFindUsableSkipsDedicated(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	expiry := time.Now().Add(time.Hour)

	_, err := keys.CreateDedicated(1, funderAddr, hunterAddr, testToken,
		big.NewInt(500), expiry, big.NewInt(84532), "0xsig")
	require.NoError(t, err)

	key, err := keys.FindUsable(funderAddr, testToken, big.NewInt(100))
	require.NoError(t, err)
	assert.Nil(t, key, "dedicated keys must not serve general payouts")
}

func TestConsumeDecrementsAndAudits(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	hsm := newTestHSM(t)
	key := seedAccessKey(t, db, 1, hsm, 500)

	usage, err := keys.Consume(key.ID, testToken, big.NewInt(300), 11)
	require.NoError(t, err)

	reloaded, err := keys.Get(key.ID)
	require.NoError(t, err)
	assert.Equal(t, "200", reloaded.Limits[0].RemainingAmount.String())
	assert.NotNil(t, reloaded.LastUsedAt)

	// 审计条目先落库，广播成功后回填哈希
	var usages []model.AccessKeyUsage
	require.NoError(t, db.Where("access_key_id = ?", key.ID).Find(&usages).Error)
	require.Len(t, usages, 1)
	assert.Equal(t, uint(11), usages[0].PayoutID)
	assert.Equal(t, "300", usages[0].Amount.String())
	assert.Empty(t, usages[0].TxHash)

	require.NoError(t, keys.RecordBroadcast(usage.ID, "0xabc"))
	require.NoError(t, db.First(&usages[0], usage.ID).Error)
	assert.Equal(t, "0xabc", usages[0].TxHash)

	// 余量不足时扣减拒绝
	_, err = keys.Consume(key.ID, testToken, big.NewInt(300), 12)
	require.Error(t, err)
	assert.Equal(t, apperr.KindExpiredOrRevokedKey, apperr.KindOf(err))
}

func TestRefundRestoresLimit(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	hsm := newTestHSM(t)
	key := seedAccessKey(t, db, 1, hsm, 500)

	usage, err := keys.Consume(key.ID, testToken, big.NewInt(300), 11)
	require.NoError(t, err)
	require.NoError(t, keys.Refund(usage))

	reloaded, err := keys.Get(key.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", reloaded.Limits[0].RemainingAmount.String())

	// 退款后审计条目一并撤销
	var count int64
	require.NoError(t, db.Model(&model.AccessKeyUsage{}).
		Where("access_key_id = ?", key.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConsumeConcurrentNeverOverdraws(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	hsm := newTestHSM(t)
	key := seedAccessKey(t, db, 1, hsm, 500)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = keys.Consume(key.ID, testToken, big.NewInt(200), uint(20+i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.LessOrEqual(t, succeeded, 2, "a 500 limit fits at most two 200 spends")

	reloaded, err := keys.Get(key.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reloaded.Limits[0].RemainingAmount.Big().Sign(), 0)
}

func TestRevokeIsPermanent(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyLogic(db)
	hsm := newTestHSM(t)
	key := seedAccessKey(t, db, 1, hsm, 500)

	require.NoError(t, keys.Revoke(key.ID, "owner request"))

	reloaded, err := keys.Get(key.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccessKeyStatusRevoked, reloaded.Status)
	require.NotNil(t, reloaded.RevokedAt)

	err = keys.Validate(reloaded, testToken, big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, apperr.KindExpiredOrRevokedKey, apperr.KindOf(err))

	// 状态被误改回 active 也不能复活
	require.NoError(t, db.Model(&model.AccessKey{}).Where("id = ?", key.ID).
		Update("status", model.AccessKeyStatusActive).Error)
	reloaded, err = keys.Get(key.ID)
	require.NoError(t, err)
	err = keys.Validate(reloaded, testToken, big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, apperr.KindExpiredOrRevokedKey, apperr.KindOf(err))
}
