package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	BodyLimit    int64         `mapstructure:"body_limit"` // 请求体上限（字节）
	CORS         CORSConfig    `mapstructure:"cors"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串（gorm 与 pq.Listener 共用）
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 校验配置
// Token 由外部认证服务签发，本服务只持有共享密钥
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig 出发调度引擎配置
type EngineConfig struct {
	Timezone            string        `mapstructure:"timezone"` // 阶段日期/时间所在时区
	WindowSweepInterval time.Duration `mapstructure:"window_sweep_interval"`
	WaitingEvalInterval time.Duration `mapstructure:"waiting_eval_interval"`
	RefillCheckInterval time.Duration `mapstructure:"refill_check_interval"`
	AuditInterval       time.Duration `mapstructure:"audit_interval"`
	SweepTimeout        time.Duration `mapstructure:"sweep_timeout"`
	RealtimeEnabled     bool          `mapstructure:"realtime_enabled"`
	DepartureRateLimit  int           `mapstructure:"departure_rate_limit"` // 每分钟每客户端，0 表示关闭
}

// Location 解析引擎时区
func (c *EngineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "hajj_management")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Riyadh")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "hajj-management")
	v.SetDefault("auth.access_token_ttl", "12h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.timezone", "Asia/Riyadh")
	v.SetDefault("engine.window_sweep_interval", "60m")
	v.SetDefault("engine.waiting_eval_interval", "30m")
	v.SetDefault("engine.refill_check_interval", "60s")
	v.SetDefault("engine.audit_interval", "5m")
	v.SetDefault("engine.sweep_timeout", "30s")
	v.SetDefault("engine.realtime_enabled", true)
	v.SetDefault("engine.departure_rate_limit", 120)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("HAJJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := c.Engine.Location(); err != nil {
		return fmt.Errorf("配置校验失败: engine.timezone 无效: %w", err)
	}

	intervals := map[string]time.Duration{
		"engine.window_sweep_interval": c.Engine.WindowSweepInterval,
		"engine.waiting_eval_interval": c.Engine.WaitingEvalInterval,
		"engine.refill_check_interval": c.Engine.RefillCheckInterval,
		"engine.audit_interval":        c.Engine.AuditInterval,
		"engine.sweep_timeout":         c.Engine.SweepTimeout,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("配置校验失败: %s 必须大于 0", key)
		}
	}
	return nil
}
