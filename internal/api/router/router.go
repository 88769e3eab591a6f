package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hajj-management/config"
	"hajj-management/internal/api/handler"
	"hajj-management/internal/api/middleware"
	"hajj-management/pkg/jwt"
	"hajj-management/pkg/redis"
)

// Pinger 健康检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// Setup 初始化并返回 Gin 路由引擎；rdb 可为 nil（关闭限流）
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db Pinger, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	departureLimit := middleware.RateLimit(rdb, cfg.Engine.DepartureRateLimit, time.Minute)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		anyRole := middleware.RoleAuth(middleware.RoleAdmin, middleware.RoleOperator)
		adminOnly := middleware.RoleAuth(middleware.RoleAdmin)

		// 阶段模块
		stages := v1.Group("/stages")
		{
			stages.GET("", anyRole, h.Stage.ListStages)
			stages.GET("/:id", anyRole, h.Stage.GetStage)
			stages.POST("", adminOnly, h.Stage.CreateStage)
			stages.PUT("/:id", adminOnly, h.Stage.UpdateStage)
			stages.POST("/:id/start", anyRole, h.Stage.StartStage)
			stages.POST("/:id/complete", anyRole, h.Stage.CompleteStage)
		}

		// 朝觐团等待队列
		v1.POST("/pilgrim-groups/:id/evaluate", adminOnly, h.Stage.EvaluateGroup)

		// 集散中心模块
		centers := v1.Group("/centers")
		{
			centers.GET("", anyRole, h.Center.ListCenters)
			centers.GET("/:id", anyRole, h.Center.GetCenter)
			centers.PUT("/:id/stage", adminOnly, h.Center.AssignStage)
			centers.PUT("/:id/refill", anyRole, h.Center.SetRefill)
			centers.GET("/:id/departures", anyRole, h.Center.ListDepartures)
			centers.POST("/:id/departures", anyRole, departureLimit, h.Departure.RecordDeparture)
		}

		// 告警模块
		alerts := v1.Group("/alerts")
		{
			alerts.GET("", anyRole, h.Alert.ListAlerts)
			alerts.GET("/stream", anyRole, h.Alert.StreamAlerts)
			alerts.PUT("/:id/resolve", adminOnly, h.Alert.ResolveAlert)
		}

		// RPC 兼容入口
		v1.POST("/rpc/update_departure_counts", anyRole, departureLimit, h.Departure.UpdateDepartureCounts)
	}

	return r
}
