package router

import (
	"github.com/wozhendeai/grip-sub002/internal/chain"
	"github.com/wozhendeai/grip-sub002/internal/handler"
	"github.com/wozhendeai/grip-sub002/internal/logic"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(db *gorm.DB, chainClient *chain.Client, payoutLogic *logic.PayoutLogic, claimLogic *logic.ClaimLogic) *gin.Engine {
	r := gin.Default()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "bounty-payout-service",
			"network": chainClient.Network(),
		})
	})

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 赏金相关路由
		bountyHandler := handler.NewBountyHandler(db, payoutLogic)
		bounties := v1.Group("/bounties")
		{
			bounties.GET("", bountyHandler.GetBounties)
			bounties.GET("/:id", bountyHandler.GetBounty)
			bounties.GET("/:id/submissions", bountyHandler.GetBountySubmissions)
			bounties.GET("/:id/payouts", bountyHandler.GetBountyPayouts)
			bounties.DELETE("/:id", bountyHandler.CancelBounty)
			bounties.POST("/:id/approve", bountyHandler.ApproveSubmission)
			bounties.POST("/:id/reject", bountyHandler.RejectSubmission)
			bounties.POST("/:id/pay", bountyHandler.DirectPay)
		}

		// 委托密钥路由
		keyHandler := handler.NewAccessKeyHandler(db, chainClient)
		keys := v1.Group("/access-keys")
		{
			keys.POST("", keyHandler.CreateAccessKey)
			keys.GET("", keyHandler.GetAccessKeys)
			keys.GET("/:id", keyHandler.GetAccessKey)
			keys.DELETE("/:id", keyHandler.RevokeAccessKey)
		}

		// 支付与领取
		payoutHandler := handler.NewPayoutHandler(payoutLogic)
		v1.GET("/payouts/:id", payoutHandler.GetPayout)

		claimHandler := handler.NewClaimHandler(claimLogic)
		v1.POST("/claims/:token", claimHandler.Claim)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
