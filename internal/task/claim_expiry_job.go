package task

import (
	"time"

	"github.com/wozhendeai/grip-sub002/internal/config"
	"github.com/wozhendeai/grip-sub002/internal/logger"
	"github.com/wozhendeai/grip-sub002/internal/logic"

	"github.com/go-co-op/gocron/v2"
)

// ClaimExpiryJob 清理过期的待领支付
type ClaimExpiryJob struct {
	claims *logic.ClaimLogic
	config *config.Config
}

// NewClaimExpiryJob 创建领取过期任务
func NewClaimExpiryJob(claims *logic.ClaimLogic, cfg *config.Config) *ClaimExpiryJob {
	return &ClaimExpiryJob{claims: claims, config: cfg}
}

// GetName 获取任务名称
func (j *ClaimExpiryJob) GetName() string {
	return "claim_expiry_updater"
}

// GetSchedule 获取调度配置
func (j *ClaimExpiryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *ClaimExpiryJob) Execute() {
	expired, err := j.claims.ExpireStale()
	if err != nil {
		logger.Error("Failed to expire stale claims: %v", err)
		return
	}
	if expired > 0 {
		logger.Info("Claim expiry task completed. Expired %d pending payments", expired)
	}
}
