package task

import (
	"context"
	"sync"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/chain"
	"github.com/wozhendeai/grip-sub002/internal/config"
	"github.com/wozhendeai/grip-sub002/internal/logger"
	"github.com/wozhendeai/grip-sub002/internal/logic"
	"github.com/wozhendeai/grip-sub002/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// PayoutConfirmJob 轮询已广播支付的链上确认状态
type PayoutConfirmJob struct {
	db          *gorm.DB
	chain       *chain.Client
	config      *config.Config
	submissions *logic.SubmissionLogic
}

// NewPayoutConfirmJob 创建支付确认任务
func NewPayoutConfirmJob(db *gorm.DB, chainClient *chain.Client, cfg *config.Config) *PayoutConfirmJob {
	return &PayoutConfirmJob{
		db:          db,
		chain:       chainClient,
		config:      cfg,
		submissions: logic.NewSubmissionLogic(db),
	}
}

// GetName 获取任务名称
func (j *PayoutConfirmJob) GetName() string {
	return "payout_confirm_updater"
}

// GetSchedule 获取调度配置
func (j *PayoutConfirmJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *PayoutConfirmJob) Execute() {
	var payouts []model.Payout
	err := j.db.Where("status = ? AND tx_hash <> ''", model.PayoutStatusPending).Find(&payouts).Error
	if err != nil {
		logger.Error("Failed to fetch pending payouts: %v", err)
		return
	}
	if len(payouts) == 0 {
		return
	}

	logger.Debug("Checking confirmation for %d payouts", len(payouts))

	poolSize := j.config.Task.PoolSize
	if poolSize < 1 {
		poolSize = 4
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		logger.Error("Failed to create confirmation pool: %v", err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range payouts {
		payout := &payouts[i]
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			j.checkOne(payout)
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit confirmation check: %v", err)
		}
	}
	wg.Wait()
}

// checkOne 查询单笔支付的确认状态并推进落库
func (j *PayoutConfirmJob) checkOne(payout *model.Payout) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	status, err := j.chain.CheckConfirmation(ctx, common.HexToHash(payout.TxHash))
	if err != nil {
		logger.Warn("Failed to check confirmation for payout %d (tx %s): %v", payout.ID, payout.TxHash, err)
		return
	}

	switch status {
	case chain.ConfirmationAccepted:
		payout.Status = model.PayoutStatusConfirmed
		now := time.Now()
		payout.ConfirmedAt = &now
		if err := j.db.Save(payout).Error; err != nil {
			logger.Error("Failed to confirm payout %d: %v", payout.ID, err)
			return
		}
		logger.Info("Payout %d confirmed, tx %s", payout.ID, payout.TxHash)
		j.markSubmissionPaid(payout)

	case chain.ConfirmationReverted:
		payout.Status = model.PayoutStatusFailed
		payout.FailReason = "transaction reverted on chain"
		// 失败可重试：清掉哈希，下一次批准重新构造
		payout.TxHash = ""
		if err := j.db.Save(payout).Error; err != nil {
			logger.Error("Failed to mark payout %d failed: %v", payout.ID, err)
			return
		}
		logger.Warn("Payout %d reverted on chain", payout.ID)

	case chain.ConfirmationPending:
		// 继续等下一轮
	}
}

// markSubmissionPaid 支付确认后把对应提交置为paid
func (j *PayoutConfirmJob) markSubmissionPaid(payout *model.Payout) {
	if payout.SubmissionID == nil {
		return
	}
	var sub model.Submission
	if err := j.db.First(&sub, *payout.SubmissionID).Error; err != nil {
		logger.Error("Failed to load submission %d: %v", *payout.SubmissionID, err)
		return
	}
	if sub.Status == model.SubmissionStatusPaid {
		return
	}
	if err := j.submissions.MarkPaid(&sub); err != nil {
		logger.Error("Failed to mark submission %d paid: %v", sub.ID, err)
		return
	}
	// 赏金随首笔成功支付关闭
	if err := j.db.Model(&model.Bounty{}).Where("id = ? AND status = ?", payout.BountyID, model.BountyStatusOpen).
		Update("status", model.BountyStatusCompleted).Error; err != nil {
		logger.Error("Failed to complete bounty %d: %v", payout.BountyID, err)
	}
}
