package main

import (
	"log"

	"github.com/wozhendeai/grip-sub002/internal/chain"
	"github.com/wozhendeai/grip-sub002/internal/config"
	"github.com/wozhendeai/grip-sub002/internal/database"
	"github.com/wozhendeai/grip-sub002/internal/logger"
	"github.com/wozhendeai/grip-sub002/internal/logic"
	"github.com/wozhendeai/grip-sub002/internal/router"
	"github.com/wozhendeai/grip-sub002/internal/signing"
	"github.com/wozhendeai/grip-sub002/internal/task"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	lg, err := logger.New(logger.ParseLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.SetDefaultLogger(lg)

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化链客户端
	chainClient, err := chain.Init(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain client: %v", err)
	}

	// 平台HSM：测试网用本地私钥，生产应换成外部HSM实现
	hsm, err := signing.NewLocalHSM(cfg.Chain.HSMKey)
	if err != nil {
		logger.Fatal("Failed to initialize HSM: %v", err)
	}

	keyStore := signing.NewLocalKeyStore()
	payoutLogic := logic.NewPayoutLogic(db, chainClient, hsm, keyStore, cfg)
	claimLogic := logic.NewClaimLogic(db, payoutLogic, keyStore)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, chainClient, payoutLogic, claimLogic)

	// 启动定时任务
	task.Start(db, chainClient, claimLogic, cfg)

	// 启动服务器
	logger.Info("Server starting on port %s (network %s)", cfg.Server.Port, chainClient.Network())
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
