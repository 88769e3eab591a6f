package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hajj-management/internal/api/handler"
	"hajj-management/internal/api/router"
	"hajj-management/internal/job"
	"hajj-management/pkg/database"
	"hajj-management/pkg/jwt"
	"hajj-management/pkg/pgnotify"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API、周期任务与变更通知监听",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath, skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "启动时不执行数据库迁移")
	return cmd
}

func runServe(configPath string, skipMigrate bool) error {
	rt, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	logger.Info("应用启动中...",
		zap.Int("port", rt.cfg.Server.Port),
		zap.String("log_level", rt.cfg.Log.Level),
		zap.String("timezone", rt.cfg.Engine.Timezone),
	)

	if !skipMigrate {
		sqlDB, err := rt.db.DB()
		if err != nil {
			return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		if _, err := database.RunMigrations(sqlDB, logger); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	jwtMgr := jwt.NewManager(&rt.cfg.Auth)
	h := handler.NewHandler(rt.svc)
	engine := router.Setup(rt.cfg, h, jwtMgr, rt.rdb, rt.repo, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  rt.cfg.Server.ReadTimeout,
		WriteTimeout: rt.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务器异常: %w", err)
		}
		return nil
	})

	runner := job.NewRunner(rt.svc, &rt.cfg.Engine, rt.locker(), logger)
	g.Go(func() error {
		return runner.Run(gctx)
	})

	if rt.cfg.Engine.RealtimeEnabled {
		listener, err := pgnotify.NewListener(rt.cfg.Database.DSN(), database.CenterChangeChannel, logger)
		if err != nil {
			// 轮询任务仍会补员，实时通知只是加速
			logger.Warn("变更通知监听启动失败，仅依赖轮询", zap.Error(err))
		} else {
			defer listener.Close()
			g.Go(func() error {
				return listener.Run(gctx, job.NewCenterChangeHandler(rt.svc.Replenisher, logger))
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("收到关闭信号，开始优雅关闭...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("服务器关闭异常", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("服务器已关闭")
	return nil
}
