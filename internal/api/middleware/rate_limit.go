package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"hajj-management/pkg/redis"
	"hajj-management/pkg/response"
)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// 已认证请求按 user_id 计数，否则按客户端 IP
// rdb 为 nil 或 limit <= 0 时放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if uid := c.GetString("user_id"); uid != "" {
			subject = "user:" + uid
		}
		key := fmt.Sprintf("rate_limit:%s:%s", subject, c.FullPath())

		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			// Redis 出错时降级放行
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
