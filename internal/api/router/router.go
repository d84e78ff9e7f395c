package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Sirtheprogrammer/innervoice/config"
	"github.com/Sirtheprogrammer/innervoice/internal/api/handler"
	"github.com/Sirtheprogrammer/innervoice/internal/api/middleware"
	"github.com/Sirtheprogrammer/innervoice/pkg/jwt"
	"github.com/Sirtheprogrammer/innervoice/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitKB << 10))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")

	// 推荐码校验（注册页输入时调用，无需认证）
	v1.GET("/referrals/codes/:code", h.Referral.LookupCode)

	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtMgr))
	{
		// 账户模块
		accounts := authorized.Group("/accounts")
		{
			accounts.POST("/register", h.Account.Register)
			accounts.GET("/me", h.Account.GetMe)
		}

		// 推荐模块
		authorized.GET("/referrals/me", h.Referral.ListMine)

		// 提现模块
		payouts := authorized.Group("/payouts")
		{
			payouts.POST("",
				middleware.RateLimit(rdb, cfg.RateLimit.PayoutRequests, cfg.RateLimit.PayoutWindow, logger),
				h.Payout.RequestPayout,
			)
			payouts.GET("/me", h.Payout.ListMine)
		}

		// 管理端
		admin := authorized.Group("/admin")
		admin.Use(middleware.RoleAuth(jwt.RoleAdmin))
		{
			admin.GET("/payouts/pending", h.Admin.ListPendingPayouts)
			admin.GET("/payouts/export", h.Admin.ExportPendingPayouts)
			admin.POST("/payouts/:id/approve", h.Admin.ApprovePayout)
			admin.POST("/payouts/:id/reject", h.Admin.RejectPayout)

			admin.GET("/accounts", h.Admin.ListAccounts)
			admin.GET("/accounts/count", h.Admin.CountAccounts)
			admin.POST("/accounts/:id/ban", h.Admin.BanAccount)
			admin.POST("/accounts/:id/unban", h.Admin.UnbanAccount)

			admin.POST("/referral-codes/heal", h.Admin.HealReferralCodes)
		}
	}

	return r
}
