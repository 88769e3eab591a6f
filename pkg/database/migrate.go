package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

const (
	migrationsDir = "migrations"

	// CenterChangeChannel centers 变更触发器（000002）使用的 pg_notify 频道
	CenterChangeChannel = "center_changes"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus 迁移后的 schema 版本
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// newMigrator 不调用 Close：postgres 驱动会连带关闭传入的 *sql.DB
func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("加载迁移文件失败: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("创建迁移驱动失败: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("初始化迁移实例失败: %w", err)
	}
	return m, nil
}

// RunMigrations 将 schema 升级到最新版本，已是最新时不报错
func RunMigrations(db *sql.DB, logger *zap.Logger) (MigrationStatus, error) {
	m, err := newMigrator(db)
	if err != nil {
		return MigrationStatus{}, err
	}

	applied := true
	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return MigrationStatus{}, fmt.Errorf("执行迁移失败: %w", err)
		}
		applied = false
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("读取迁移版本失败: %w", err)
	}
	status := MigrationStatus{Version: version, Dirty: dirty}

	fields := []zap.Field{zap.Uint("version", version), zap.Bool("applied", applied)}
	if dirty {
		logger.Warn("数据库迁移处于 dirty 状态，需要人工处理", fields...)
		return status, nil
	}
	logger.Info("数据库迁移完成", fields...)
	return status, nil
}
