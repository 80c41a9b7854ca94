package logic

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/wozhendeai/grip-sub002/internal/config"
	"github.com/wozhendeai/grip-sub002/internal/database"
	"github.com/wozhendeai/grip-sub002/internal/model"
	"github.com/wozhendeai/grip-sub002/internal/signing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testToken  = "0x1000000000000000000000000000000000000001"
	funderAddr = "0x2000000000000000000000000000000000000002"
	hunterAddr = "0x3000000000000000000000000000000000000003"
)

func mustAddr(s string) common.Address { return common.HexToAddress(s) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{
			Network:       "testnet",
			ChainId:       84532,
			MaxFeePerGas:  2_000_000_000,
			GasLimit:      200_000,
			Confirmations: 1,
		},
		Payout: config.PayoutConfig{
			FallbackStrategy: "claim_link",
			ClaimBaseURL:     "https://pay.example.com",
			ClaimTTLHours:    72,
		},
	}
}

// fakeChain 进程内链客户端，余额可设置，广播只记账
type fakeChain struct {
	mu           sync.Mutex
	balances     map[common.Address]*big.Int
	nonce        uint64
	broadcasts   [][]byte
	broadcastErr error
}

func newFakeChain() *fakeChain {
	return &fakeChain{balances: make(map[common.Address]*big.Int)}
}

func (f *fakeChain) setBalance(owner common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[owner] = new(big.Int).Set(amount)
}

func (f *fakeChain) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) ChainID() *big.Int { return big.NewInt(84532) }

func (f *fakeChain) BackendWallet() common.Address {
	return common.HexToAddress("0x9000000000000000000000000000000000000009")
}

func (f *fakeChain) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.nonce
	f.nonce++
	return n, nil
}

func (f *fakeChain) TransferCallData(to common.Address, amount *big.Int, m [32]byte) ([]byte, error) {
	data := append([]byte{0xa9, 0x05, 0x9c, 0xbb}, to.Bytes()...)
	data = append(data, amount.Bytes()...)
	data = append(data, m[:]...)
	return data, nil
}

func (f *fakeChain) BroadcastRaw(ctx context.Context, raw []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broadcastErr != nil {
		return common.Hash{}, f.broadcastErr
	}
	f.broadcasts = append(f.broadcasts, raw)
	return crypto.Keccak256Hash(raw), nil
}

func (f *fakeChain) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

// failingHSM 模拟HSM不可用
type failingHSM struct{}

func (failingHSM) SignDigest(ctx context.Context, digest [32]byte) ([]byte, error) {
	return nil, errors.New("hsm unavailable")
}

func (failingHSM) Address() common.Address { return common.Address{} }

func newTestHSM(t *testing.T) *signing.LocalHSM {
	t.Helper()
	hsm, err := signing.GenerateLocalHSM()
	require.NoError(t, err)
	return hsm
}

type fixture struct {
	funder *model.User
	hunter *model.User
	bounty *model.Bounty
	sub    *model.Submission
}

// seedBounty 一个开放悬赏 + 一个待批准提交。
// hunterWallet为false时收款人没有绑定钱包。
func seedBounty(t *testing.T, db *gorm.DB, amount int64, hunterWallet bool) *fixture {
	t.Helper()

	fw := funderAddr
	funder := &model.User{GithubUserID: "gh-funder", GithubHandle: "funder", WalletAddress: &fw}
	require.NoError(t, db.Create(funder).Error)

	hunter := &model.User{GithubUserID: "gh-hunter", GithubHandle: "octocat"}
	if hunterWallet {
		hw := hunterAddr
		hunter.WalletAddress = &hw
	}
	require.NoError(t, db.Create(hunter).Error)

	bounty := &model.Bounty{
		RepoOwner:       "acme",
		RepoName:        "widget",
		IssueNumber:     42,
		Title:           "fix the widget",
		TotalFunded:     model.NewBigInt(big.NewInt(amount)),
		TokenAddress:    testToken,
		PrimaryFunderID: funder.ID,
		Status:          model.BountyStatusOpen,
	}
	require.NoError(t, db.Create(bounty).Error)

	sub := &model.Submission{
		BountyID: bounty.ID,
		UserID:   hunter.ID,
		PRNumber: 7,
		Status:   model.SubmissionStatusPending,
	}
	require.NoError(t, db.Create(sub).Error)

	return &fixture{funder: funder, hunter: hunter, bounty: bounty, sub: sub}
}

// seedAccessKey 给出资人一把足额密钥
func seedAccessKey(t *testing.T, db *gorm.DB, ownerID uint, hsm signing.HSM, limit int64) *model.AccessKey {
	t.Helper()
	keys := NewAccessKeyLogic(db)
	key, err := keys.Create(CreateAccessKeyParams{
		OwnerUserID:      &ownerID,
		RootWallet:       funderAddr,
		KeyWallet:        hsm.Address().Hex(),
		Limits:           map[string]*big.Int{testToken: big.NewInt(limit)},
		ChainID:          big.NewInt(84532),
		AuthorizationSig: "0xdeadbeef",
	})
	require.NoError(t, err)
	return key
}
