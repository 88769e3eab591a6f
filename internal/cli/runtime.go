package cli

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hajj-management/config"
	"hajj-management/internal/job"
	"hajj-management/internal/repository"
	"hajj-management/internal/service"
	"hajj-management/pkg/database"
	applogger "hajj-management/pkg/logger"
	"hajj-management/pkg/redis"
)

// runtime 子命令共用的依赖
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	repo   *repository.Repository
	rdb    *redis.Client
	svc    *service.Service
}

// loadConfig 加载配置并初始化日志
func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// bootstrap 依赖注入: DB → Repository → Service；Redis 不可用时降级运行
func bootstrap(path string) (*runtime, error) {
	cfg, logger, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repo:   repository.NewRepository(db),
	}

	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，跨副本互斥、限流与实时告警将不可用", zap.Error(err))
	} else {
		rt.rdb = rdb
	}

	rt.svc, err = service.NewService(cfg, rt.repo, rt.broker(), logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("初始化服务失败: %w", err)
	}
	return rt, nil
}

// broker 只有 Redis 可用时才返回非 nil 接口值
func (rt *runtime) broker() service.AlertBroker {
	if rt.rdb == nil {
		return nil
	}
	return rt.rdb
}

// locker 同 broker
func (rt *runtime) locker() job.Locker {
	if rt.rdb == nil {
		return nil
	}
	return rt.rdb
}

// Close 释放数据库与 Redis 连接
func (rt *runtime) Close() {
	if sqlDB, err := rt.db.DB(); err == nil {
		sqlDB.Close()
	}
	if rt.rdb != nil {
		rt.rdb.Close()
	}
	rt.logger.Sync()
}
