package logic

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/apperr"
	"github.com/wozhendeai/grip-sub002/internal/config"
	"github.com/wozhendeai/grip-sub002/internal/logger"
	"github.com/wozhendeai/grip-sub002/internal/memo"
	"github.com/wozhendeai/grip-sub002/internal/model"
	"github.com/wozhendeai/grip-sub002/internal/signing"
	"github.com/wozhendeai/grip-sub002/internal/txcodec"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChainClient 支付流程需要的链上操作
type ChainClient interface {
	BalanceReader
	ChainID() *big.Int
	BackendWallet() common.Address
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	TransferCallData(to common.Address, amount *big.Int, m [32]byte) ([]byte, error)
	BroadcastRaw(ctx context.Context, raw []byte) (common.Hash, error)
}

// WalletProvider 托管钱包创建
type WalletProvider interface {
	CreateWallet(ctx context.Context) (address string, keyRef string, err error)
}

// ApprovalOutcome 批准动作的结果形态
type ApprovalOutcome string

const (
	OutcomeAutoSigned       ApprovalOutcome = "auto_signed"        // 委托密钥自动签名，已广播
	OutcomeManualSigning    ApprovalOutcome = "manual_signing"     // 返回交易参数由客户端passkey签名
	OutcomeClaimLink        ApprovalOutcome = "claim_link"         // 待领支付，资金留在出资人钱包
	OutcomeCustodial        ApprovalOutcome = "custodial"          // 已付入平台托管钱包
	OutcomeAwaitingApproval ApprovalOutcome = "awaiting_approval"  // 等待另一侧批准
)

// TxParams 手动签名所需参数
type TxParams struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// ApprovalResult 批准结果
type ApprovalResult struct {
	Outcome          ApprovalOutcome `json:"outcome"`
	SubmissionID     uint            `json:"submission_id"`
	PayoutID         uint            `json:"payout_id,omitempty"`
	TxHash           string          `json:"tx_hash,omitempty"`
	TxParams         *TxParams       `json:"tx_params,omitempty"`
	ClaimURL         string          `json:"claim_url,omitempty"`
	ClaimExpiresAt   *time.Time      `json:"claim_expires_at,omitempty"`
	CustodialAddress string          `json:"custodial_address,omitempty"`
	// 哪一步没走通、下一步该做什么
	Notice string `json:"notice,omitempty"`
}

// ApproveParams 批准请求
type ApproveParams struct {
	BountyID     uint
	SubmissionID *uint
	ActorUserID  uint
	UseAccessKey bool
	// 无钱包兜底路径创建专用密钥时，root钱包所有者的授权签名
	KeyAuthorizationSig string
}

// PayoutLogic 支付构造与批准编排
type PayoutLogic struct {
	db          *gorm.DB
	chain       ChainClient
	hsm         signing.HSM
	wallets     WalletProvider
	cfg         *config.Config
	submissions *SubmissionLogic
	accessKeys  *AccessKeyLogic
	liability   *LiabilityLogic
	nonces      *signing.NonceLocker
}

// NewPayoutLogic 创建支付业务逻辑
func NewPayoutLogic(
	db *gorm.DB,
	chainClient ChainClient,
	hsm signing.HSM,
	wallets WalletProvider,
	cfg *config.Config,
) *PayoutLogic {
	return &PayoutLogic{
		db:          db,
		chain:       chainClient,
		hsm:         hsm,
		wallets:     wallets,
		cfg:         cfg,
		submissions: NewSubmissionLogic(db),
		accessKeys:  NewAccessKeyLogic(db),
		liability:   NewLiabilityLogic(db, chainClient),
		nonces:      signing.NewNonceLocker(),
	}
}

// Submissions 提交逻辑
func (p *PayoutLogic) Submissions() *SubmissionLogic { return p.submissions }

// AccessKeys 密钥逻辑
func (p *PayoutLogic) AccessKeys() *AccessKeyLogic { return p.accessKeys }

// Liability 负债账本
func (p *PayoutLogic) Liability() *LiabilityLogic { return p.liability }

// Approve 批准提交并推进支付。批准是独立的状态迁移：一旦落库，
// 后面的签名失败只会降级为手动签名，绝不回滚批准。
func (p *PayoutLogic) Approve(ctx context.Context, params ApproveParams) (*ApprovalResult, error) {
	bounty, err := p.loadBounty(params.BountyID)
	if err != nil {
		return nil, err
	}
	if bounty.Status != model.BountyStatusOpen {
		return nil, apperr.New(apperr.KindConflict, fmt.Sprintf("bounty %d is %s", bounty.ID, bounty.Status))
	}

	asOwner, err := p.approverRole(bounty, params.ActorUserID)
	if err != nil {
		return nil, err
	}

	sub, err := p.submissions.Resolve(params.BountyID, params.SubmissionID)
	if err != nil {
		return nil, err
	}

	if asOwner {
		err = p.submissions.ApproveAsOwner(sub, bounty, params.ActorUserID)
	} else {
		err = p.submissions.ApproveAsFunder(sub, bounty, params.ActorUserID)
	}
	if err != nil {
		return nil, err
	}

	if sub.Status != model.SubmissionStatusApproved && sub.Status != model.SubmissionStatusMerged {
		return &ApprovalResult{
			Outcome:      OutcomeAwaitingApproval,
			SubmissionID: sub.ID,
			Notice:       "approval recorded; waiting for the other required approval before payout",
		}, nil
	}

	return p.buildAndSign(ctx, bounty, sub, params)
}

// Reject 驳回提交
func (p *PayoutLogic) Reject(bountyID uint, submissionID *uint, actorID uint, reason string) (*model.Submission, error) {
	bounty, err := p.loadBounty(bountyID)
	if err != nil {
		return nil, err
	}
	if _, err := p.approverRole(bounty, actorID); err != nil {
		return nil, err
	}

	sub, err := p.submissions.Resolve(bountyID, submissionID)
	if err != nil {
		return nil, err
	}
	if err := p.submissions.Reject(sub, actorID, reason); err != nil {
		return nil, err
	}
	return sub, nil
}

// approverRole 检查调用者身份：主出资人或（要求双批时的）仓库owner
func (p *PayoutLogic) approverRole(bounty *model.Bounty, actorID uint) (asOwner bool, err error) {
	if actorID == bounty.PrimaryFunderID {
		return false, nil
	}
	if bounty.RequireOwnerApproval && actorID == bounty.RepoOwnerUserID {
		return true, nil
	}
	return false, apperr.New(apperr.KindPermission,
		fmt.Sprintf("user %d is not the primary funder of bounty %d", actorID, bounty.ID))
}

// buildAndSign 解析收款人并构造支付
func (p *PayoutLogic) buildAndSign(ctx context.Context, bounty *model.Bounty, sub *model.Submission, params ApproveParams) (*ApprovalResult, error) {
	if err := p.ensureNoCompetingPayout(bounty.ID, &sub.ID); err != nil {
		return nil, err
	}

	recipient, err := p.loadUser(sub.UserID)
	if err != nil {
		return nil, err
	}
	funder, err := p.loadUser(bounty.PrimaryFunderID)
	if err != nil {
		return nil, err
	}
	if funder.WalletAddress == nil {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("funder %d has no wallet to pay from", funder.ID))
	}

	amount := bounty.TotalFunded.Big()
	if amount.Sign() <= 0 {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("bounty %d has no funds", bounty.ID))
	}

	payMemo := memo.EncodeBounty(memo.BountyMemo{
		IssueNumber: uint64(bounty.IssueNumber),
		PRNumber:    uint64(sub.PRNumber),
		Handle:      recipient.GithubHandle,
	})

	if recipient.WalletAddress != nil {
		return p.payDirect(ctx, bounty, sub, funder, *recipient.WalletAddress, amount, payMemo, params, false)
	}

	// 收款人没有钱包，走配置选定的兜底策略
	switch p.cfg.Payout.FallbackStrategy {
	case "custodial":
		return p.payCustodial(ctx, bounty, sub, funder, recipient, amount, payMemo, params)
	default:
		return p.payClaimLink(ctx, bounty, sub, funder, recipient, amount, params)
	}
}

// payDirect 收款人已有钱包的正常路径
func (p *PayoutLogic) payDirect(
	ctx context.Context,
	bounty *model.Bounty,
	sub *model.Submission,
	funder *model.User,
	recipientAddr string,
	amount *big.Int,
	payMemo [32]byte,
	params ApproveParams,
	custodial bool,
) (*ApprovalResult, error) {
	payout, err := p.findOrCreatePayout(bounty, sub, &recipientAddr, amount, custodial)
	if err != nil {
		return nil, err
	}
	if payout.TxHash != "" || payout.Status == model.PayoutStatusConfirmed {
		return nil, apperr.New(apperr.KindConflict,
			fmt.Sprintf("payout %d already broadcast with tx %s", payout.ID, payout.TxHash))
	}

	data, err := p.chain.TransferCallData(common.HexToAddress(recipientAddr), amount, payMemo)
	if err != nil {
		return nil, fmt.Errorf("build transfer data: %w", err)
	}
	manual := &TxParams{
		To:    bounty.TokenAddress,
		Data:  hexutil.Encode(data),
		Value: "0",
	}

	result := &ApprovalResult{
		Outcome:      OutcomeManualSigning,
		SubmissionID: sub.ID,
		PayoutID:     payout.ID,
		TxParams:     manual,
	}
	if custodial {
		result.Outcome = OutcomeCustodial
		result.CustodialAddress = recipientAddr
	}

	if !params.UseAccessKey {
		result.Notice = "sign the transfer with your passkey"
		return result, nil
	}

	key, err := p.accessKeys.FindUsable(*funder.WalletAddress, bounty.TokenAddress, amount)
	if err != nil {
		return nil, err
	}
	if key == nil {
		result.Notice = "no usable access key for this amount; sign the transfer manually"
		return result, nil
	}

	signed, err := p.signAndBroadcast(ctx, *funder.WalletAddress, payout, key, data)
	if err != nil {
		// 委托签名失败降级为手动签名，批准状态保持不变
		logger.Error("Access key signing failed for payout %d, falling back to manual: %v", payout.ID, err)
		result.Notice = "automatic signing failed; sign the transfer manually to complete the payout"
		return result, nil
	}

	result.TxParams = nil
	result.Outcome = OutcomeAutoSigned
	if custodial {
		result.Outcome = OutcomeCustodial
	}
	result.TxHash = signed.Hash.Hex()
	result.Notice = ""
	return result, nil
}

// payClaimLink 待领支付兜底：创建专用单次密钥，资金留在出资人钱包
func (p *PayoutLogic) payClaimLink(
	ctx context.Context,
	bounty *model.Bounty,
	sub *model.Submission,
	funder *model.User,
	recipient *model.User,
	amount *big.Int,
	params ApproveParams,
) (*ApprovalResult, error) {
	if params.KeyAuthorizationSig == "" {
		return nil, apperr.New(apperr.KindValidation,
			"recipient has no wallet; a key authorization signature is required to create the claim link")
	}

	expiresAt := time.Now().Add(time.Duration(p.cfg.Payout.ClaimTTLHours) * time.Hour)
	claimToken := uuid.NewString()

	var payout *model.Payout
	var pending *model.PendingPayment

	// 余额守卫：同一出资人+代币的检查和落库在一把锁内完成
	err := p.liability.Reserve(ctx, funder.ID, common.HexToAddress(*funder.WalletAddress), bounty.TokenAddress, amount, func() error {
		var err error
		payout, err = p.findOrCreatePayout(bounty, sub, nil, amount, false)
		if err != nil {
			return err
		}

		key, err := p.accessKeys.CreateDedicated(
			funder.ID,
			*funder.WalletAddress,
			p.chain.BackendWallet().Hex(),
			bounty.TokenAddress,
			amount,
			expiresAt,
			p.chain.ChainID(),
			params.KeyAuthorizationSig,
		)
		if err != nil {
			return err
		}

		pending = &model.PendingPayment{
			PayoutID:       payout.ID,
			AccessKeyID:    key.ID,
			ClaimToken:     claimToken,
			ClaimExpiresAt: expiresAt,
			Status:         model.PendingPaymentStatusPending,
		}
		if err := p.db.Create(pending).Error; err != nil {
			return fmt.Errorf("create pending payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Created claim-link pending payment %d for submission %d (expires %s)",
		pending.ID, sub.ID, expiresAt.Format(time.RFC3339))

	return &ApprovalResult{
		Outcome:        OutcomeClaimLink,
		SubmissionID:   sub.ID,
		PayoutID:       payout.ID,
		ClaimURL:       p.claimURL(claimToken),
		ClaimExpiresAt: &expiresAt,
		Notice:         fmt.Sprintf("share the claim link with @%s; funds stay in your wallet until claimed", recipient.GithubHandle),
	}, nil
}

// payCustodial 托管钱包兜底：平台代持，立即支付进托管地址
func (p *PayoutLogic) payCustodial(
	ctx context.Context,
	bounty *model.Bounty,
	sub *model.Submission,
	funder *model.User,
	recipient *model.User,
	amount *big.Int,
	payMemo [32]byte,
	params ApproveParams,
) (*ApprovalResult, error) {
	wallet, err := p.findOrCreateCustodialWallet(ctx, recipient)
	if err != nil {
		return nil, err
	}

	var result *ApprovalResult
	err = p.liability.Reserve(ctx, funder.ID, common.HexToAddress(*funder.WalletAddress), bounty.TokenAddress, amount, func() error {
		var err error
		result, err = p.payDirect(ctx, bounty, sub, funder, wallet.Address, amount, payMemo, params, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	payout, err := p.GetPayout(result.PayoutID)
	if err != nil {
		return nil, fmt.Errorf("link custodial wallet: %w", err)
	}
	payout.CustodialWalletID = &wallet.ID
	payout.IsCustodial = true
	if err := p.db.Save(payout).Error; err != nil {
		return nil, fmt.Errorf("link custodial wallet: %w", err)
	}

	result.ClaimURL = p.claimURL(wallet.ClaimToken)
	return result, nil
}

// signAndBroadcast 委托密钥签名并广播。同一root钱包串行取nonce，
// 避免并发支付的nonce互相覆盖。额度在广播之前原子预留：
// 两笔并发支付竞争同一把密钥时，超额的那笔到不了链上，
// 签名或广播失败则退还预留。
func (p *PayoutLogic) signAndBroadcast(
	ctx context.Context,
	rootWallet string,
	payout *model.Payout,
	key *model.AccessKey,
	data []byte,
) (*signing.SignedTx, error) {
	amount := payout.Amount.Big()
	if err := p.accessKeys.Validate(key, payout.TokenAddress, amount); err != nil {
		return nil, err
	}

	root := common.HexToAddress(rootWallet)
	unlock := p.nonces.Lock(root)
	defer unlock()

	usage, err := p.accessKeys.Consume(key.ID, payout.TokenAddress, amount, payout.ID)
	if err != nil {
		return nil, err
	}
	abort := func(cause error) (*signing.SignedTx, error) {
		if rerr := p.accessKeys.Refund(usage); rerr != nil {
			logger.Error("Failed to refund access key %d after aborted payout %d: %v", key.ID, payout.ID, rerr)
		}
		return nil, cause
	}

	nonce, err := p.chain.PendingNonce(ctx, root)
	if err != nil {
		return abort(apperr.Wrap(apperr.KindSigning, "read nonce", err))
	}

	tx := &txcodec.Transaction{
		ChainID:      p.chain.ChainID(),
		Nonce:        nonce,
		MaxFeePerGas: big.NewInt(p.cfg.Chain.MaxFeePerGas),
		Gas:          p.cfg.Chain.GasLimit,
		To:           common.HexToAddress(payout.TokenAddress),
		Value:        big.NewInt(0),
		Data:         data,
		AuthType:     txcodec.AuthTypeSecp256k1,
		FeeToken:     common.HexToAddress(payout.TokenAddress),
		Sponsor:      p.chain.BackendWallet(),
	}

	signer := signing.NewKeychainSigner(p.hsm, root)
	signed, err := signer.Sign(ctx, tx)
	if err != nil {
		return abort(apperr.Wrap(apperr.KindSigning, "sign transaction", err))
	}

	if _, err := p.chain.BroadcastRaw(ctx, signed.Raw); err != nil {
		return abort(apperr.Wrap(apperr.KindBroadcast, "broadcast transaction", err))
	}

	// 交易已上链，之后的落库失败只报错不退额度
	payout.TxHash = signed.Hash.Hex()
	if err := p.db.Save(payout).Error; err != nil {
		return nil, fmt.Errorf("save payout tx hash: %w", err)
	}
	if err := p.accessKeys.RecordBroadcast(usage.ID, payout.TxHash); err != nil {
		return nil, err
	}

	// 专用密钥用过一次立即吊销
	if key.Dedicated {
		if err := p.accessKeys.Revoke(key.ID, "dedicated key used"); err != nil {
			return nil, err
		}
	}

	logger.Info("Signed and broadcast payout %d with access key %d, tx %s", payout.ID, key.ID, payout.TxHash)
	return signed, nil
}

// sweepCustodial 托管钱包以第一方身份把余额划给收款人
func (p *PayoutLogic) sweepCustodial(
	ctx context.Context,
	hsm signing.HSM,
	custodialAddr common.Address,
	token common.Address,
	data []byte,
) (*signing.SignedTx, error) {
	unlock := p.nonces.Lock(custodialAddr)
	defer unlock()

	nonce, err := p.chain.PendingNonce(ctx, custodialAddr)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSigning, "read nonce", err)
	}

	tx := &txcodec.Transaction{
		ChainID:      p.chain.ChainID(),
		Nonce:        nonce,
		MaxFeePerGas: big.NewInt(p.cfg.Chain.MaxFeePerGas),
		Gas:          p.cfg.Chain.GasLimit,
		To:           token,
		Value:        big.NewInt(0),
		Data:         data,
		AuthType:     txcodec.AuthTypeSecp256k1,
		FeeToken:     token,
		Sponsor:      p.chain.BackendWallet(),
	}

	signed, err := signing.NewRootSigner(hsm).Sign(ctx, tx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSigning, "sign custodial transfer", err)
	}
	if _, err := p.chain.BroadcastRaw(ctx, signed.Raw); err != nil {
		return nil, apperr.Wrap(apperr.KindBroadcast, "broadcast custodial transfer", err)
	}
	return signed, nil
}

// ensureNoCompetingPayout 同一赏金下别的提交已有支付在途（已广播未确认）
// 或已确认时拒绝再付，赏金永远不会被支付两次。直接打赏
// （无提交的支付）不参与竞争。
func (p *PayoutLogic) ensureNoCompetingPayout(bountyID uint, excludeSubmissionID *uint) error {
	query := p.db.Model(&model.Payout{}).
		Where("bounty_id = ? AND submission_id IS NOT NULL", bountyID).
		Where("status = ? OR (status = ? AND tx_hash <> '')",
			model.PayoutStatusConfirmed, model.PayoutStatusPending)
	if excludeSubmissionID != nil {
		query = query.Where("submission_id <> ?", *excludeSubmissionID)
	}

	var competing int64
	if err := query.Count(&competing).Error; err != nil {
		return fmt.Errorf("count competing payouts: %w", err)
	}
	if competing > 0 {
		return apperr.New(apperr.KindConflict,
			fmt.Sprintf("bounty %d already has a payout in flight or confirmed for another submission", bountyID))
	}
	return nil
}

// findOrCreatePayout 每个被批准的提交只创建一条支付记录
func (p *PayoutLogic) findOrCreatePayout(
	bounty *model.Bounty,
	sub *model.Submission,
	recipientAddr *string,
	amount *big.Int,
	custodial bool,
) (*model.Payout, error) {
	var existing model.Payout
	err := p.db.Where("submission_id = ?", sub.ID).First(&existing).Error
	if err == nil {
		if recipientAddr != nil && existing.RecipientAddress == nil {
			existing.RecipientAddress = recipientAddr
			if err := p.db.Save(&existing).Error; err != nil {
				return nil, fmt.Errorf("update payout recipient: %w", err)
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load payout: %w", err)
	}

	subID := sub.ID
	payout := &model.Payout{
		SubmissionID:     &subID,
		BountyID:         bounty.ID,
		RecipientUserID:  sub.UserID,
		PayerUserID:      bounty.PrimaryFunderID,
		RecipientAddress: recipientAddr,
		Amount:           model.NewBigInt(amount),
		TokenAddress:     bounty.TokenAddress,
		Status:           model.PayoutStatusPending,
		IsCustodial:      custodial,
	}
	if err := p.db.Create(payout).Error; err != nil {
		return nil, fmt.Errorf("create payout: %w", err)
	}
	return payout, nil
}

// findOrCreateCustodialWallet 按 GitHub 身份惰性创建托管钱包
func (p *PayoutLogic) findOrCreateCustodialWallet(ctx context.Context, recipient *model.User) (*model.CustodialWallet, error) {
	var wallet model.CustodialWallet
	err := p.db.Where("github_user_id = ? AND claimed_at IS NULL", recipient.GithubUserID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load custodial wallet: %w", err)
	}

	address, keyRef, err := p.wallets.CreateWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("create custodial wallet: %w", err)
	}

	wallet = model.CustodialWallet{
		GithubUserID: recipient.GithubUserID,
		Address:      address,
		KeyRef:       keyRef,
		ClaimToken:   uuid.NewString(),
	}
	if err := p.db.Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("save custodial wallet: %w", err)
	}
	return &wallet, nil
}

// DirectPayParams 无提交的直接支付
type DirectPayParams struct {
	BountyID        uint
	PayerUserID     uint
	RecipientUserID uint
	Amount          *big.Int
	Message         string
	UseAccessKey    bool
}

// DirectPay 出资人绕过提交流程直接给某人转账，备注用自由文本。
// 收款人必须已有钱包。
func (p *PayoutLogic) DirectPay(ctx context.Context, params DirectPayParams) (*ApprovalResult, error) {
	bounty, err := p.loadBounty(params.BountyID)
	if err != nil {
		return nil, err
	}
	if params.PayerUserID != bounty.PrimaryFunderID {
		return nil, apperr.New(apperr.KindPermission,
			fmt.Sprintf("user %d is not the primary funder of bounty %d", params.PayerUserID, bounty.ID))
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, apperr.New(apperr.KindValidation, "amount must be positive")
	}

	payer, err := p.loadUser(params.PayerUserID)
	if err != nil {
		return nil, err
	}
	if payer.WalletAddress == nil {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("payer %d has no wallet", payer.ID))
	}
	recipient, err := p.loadUser(params.RecipientUserID)
	if err != nil {
		return nil, err
	}
	if recipient.WalletAddress == nil {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("recipient %d has no wallet; direct payments need a wallet on file", recipient.ID))
	}

	payout := &model.Payout{
		BountyID:         bounty.ID,
		RecipientUserID:  recipient.ID,
		PayerUserID:      payer.ID,
		RecipientAddress: recipient.WalletAddress,
		Amount:           model.NewBigInt(params.Amount),
		TokenAddress:     bounty.TokenAddress,
		Status:           model.PayoutStatusPending,
	}
	if err := p.db.Create(payout).Error; err != nil {
		return nil, fmt.Errorf("create payout: %w", err)
	}

	data, err := p.chain.TransferCallData(
		common.HexToAddress(*recipient.WalletAddress), params.Amount, memo.EncodeText(params.Message))
	if err != nil {
		return nil, fmt.Errorf("build transfer data: %w", err)
	}

	result := &ApprovalResult{
		Outcome:  OutcomeManualSigning,
		PayoutID: payout.ID,
		TxParams: &TxParams{To: bounty.TokenAddress, Data: hexutil.Encode(data), Value: "0"},
		Notice:   "sign the transfer with your passkey",
	}
	if !params.UseAccessKey {
		return result, nil
	}

	key, err := p.accessKeys.FindUsable(*payer.WalletAddress, bounty.TokenAddress, params.Amount)
	if err != nil {
		return nil, err
	}
	if key == nil {
		result.Notice = "no usable access key for this amount; sign the transfer manually"
		return result, nil
	}

	signed, err := p.signAndBroadcast(ctx, *payer.WalletAddress, payout, key, data)
	if err != nil {
		logger.Error("Access key signing failed for direct payout %d, falling back to manual: %v", payout.ID, err)
		result.Notice = "automatic signing failed; sign the transfer manually to complete the payout"
		return result, nil
	}

	result.Outcome = OutcomeAutoSigned
	result.TxParams = nil
	result.TxHash = signed.Hash.Hex()
	result.Notice = ""
	return result, nil
}

// GetPayout 按ID加载支付
func (p *PayoutLogic) GetPayout(id uint) (*model.Payout, error) {
	var payout model.Payout
	if err := p.db.First(&payout, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("payout %d not found", id))
		}
		return nil, fmt.Errorf("load payout: %w", err)
	}
	return &payout, nil
}

func (p *PayoutLogic) claimURL(token string) string {
	return fmt.Sprintf("%s/claim/%s", p.cfg.Payout.ClaimBaseURL, token)
}

func (p *PayoutLogic) loadBounty(id uint) (*model.Bounty, error) {
	var bounty model.Bounty
	if err := p.db.First(&bounty, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("bounty %d not found", id))
		}
		return nil, fmt.Errorf("load bounty: %w", err)
	}
	return &bounty, nil
}

func (p *PayoutLogic) loadUser(id uint) (*model.User, error) {
	var user model.User
	if err := p.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("user %d not found", id))
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}
