package pgnotify

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// Handler 处理一条通知；payload 为空串表示连接重建，期间的通知可能已丢失
type Handler func(ctx context.Context, payload string)

// Listener PostgreSQL LISTEN/NOTIFY 订阅（基于 pq.Listener，断线自动重连）
type Listener struct {
	listener *pq.Listener
	channel  string
	logger   *zap.Logger
}

// NewListener 建立监听连接并 LISTEN 指定频道
func NewListener(dsn, channel string, logger *zap.Logger) (*Listener, error) {
	onEvent := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("变更通知连接失败", zap.String("channel", channel), zap.Error(err))
		case pq.ListenerEventDisconnected:
			logger.Warn("变更通知连接断开", zap.String("channel", channel), zap.Error(err))
		case pq.ListenerEventReconnected:
			logger.Info("变更通知连接已恢复", zap.String("channel", channel))
		}
	}

	l := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, onEvent)
	if err := l.Listen(channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("LISTEN %s 失败: %w", channel, err)
	}

	logger.Info("变更通知监听已启动", zap.String("channel", channel))
	return &Listener{listener: l, channel: channel, logger: logger}, nil
}

// Run 阻塞分发通知直到 ctx 结束
func (l *Listener) Run(ctx context.Context, handle Handler) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-l.listener.Notify:
			// pq 在重连后发送 nil
			if n == nil {
				handle(ctx, "")
				continue
			}
			handle(ctx, n.Extra)
		case <-ticker.C:
			if err := l.listener.Ping(); err != nil {
				l.logger.Warn("变更通知连接 ping 失败", zap.String("channel", l.channel), zap.Error(err))
			}
		}
	}
}

// Close 关闭监听连接
func (l *Listener) Close() error {
	return l.listener.Close()
}
