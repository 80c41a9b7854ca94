package task

import (
	"github.com/wozhendeai/grip-sub002/internal/chain"
	"github.com/wozhendeai/grip-sub002/internal/config"
	"github.com/wozhendeai/grip-sub002/internal/logger"
	"github.com/wozhendeai/grip-sub002/internal/logic"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// Manager 后台任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	db        *gorm.DB
	chain     *chain.Client
	claims    *logic.ClaimLogic
	config    *config.Config
}

// NewManager 创建任务管理器
func NewManager(db *gorm.DB, chainClient *chain.Client, claims *logic.ClaimLogic, cfg *config.Config) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler: s,
		db:        db,
		chain:     chainClient,
		claims:    claims,
		config:    cfg,
	}
}

// Start 启动任务管理器
func Start(db *gorm.DB, chainClient *chain.Client, claims *logic.ClaimLogic, cfg *config.Config) *Manager {
	manager := NewManager(db, chainClient, claims, cfg)
	manager.RegisterJobs()
	manager.scheduler.Start()
	logger.Info("Task manager started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	m.register(NewPayoutConfirmJob(m.db, m.chain, m.config))
	m.register(NewClaimExpiryJob(m.claims, m.config))
}

// Job 后台任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

func (m *Manager) register(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
