package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hajj-management/config"
)

// Client Redis 客户端封装
// 用于定时任务互斥、接口限流与告警广播；不可用时调用方降级运行
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 任务互斥 ──

const lockPrefix = "job:lock:"

// TryLock 尝试获取带 TTL 的互斥锁（SET NX），返回是否获得
// 锁不主动释放，TTL 到期即失效，保证同一周期内只有一个副本执行
func (c *Client) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockPrefix+name, "1", ttl).Result()
}

// ── 限流 ──

// CheckRateLimit 滑动窗口限流：窗口内请求数不超过 limit 时返回 true
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)
	windowStart := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", windowStart)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= int64(limit), nil
}

// ── 告警广播 ──

// AlertChannel 阶段告警发布频道
const AlertChannel = "stage_alerts"

// PublishAlert 发布一条已序列化的告警
func (c *Client) PublishAlert(ctx context.Context, payload []byte) error {
	return c.rdb.Publish(ctx, AlertChannel, payload).Err()
}

// SubscribeAlerts 订阅告警频道；ctx 结束时自动关闭订阅
func (c *Client) SubscribeAlerts(ctx context.Context) (<-chan string, error) {
	sub := c.rdb.Subscribe(ctx, AlertChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("订阅告警频道失败: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
