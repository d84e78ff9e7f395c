package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Sirtheprogrammer/innervoice/pkg/redis"
	"github.com/Sirtheprogrammer/innervoice/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// 已认证请求按账户计数，否则按客户端 IP 计数
// rdb 为 nil 或 Redis 出错时降级放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetString("account_id")
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}

		allowed, err := rdb.Allow(c.Request.Context(), c.FullPath()+":"+subject, limit, window)
		if err != nil {
			logger.Warn("限流检查失败，降级放行", zap.String("subject", subject), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			response.TooManyRequests(c, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
