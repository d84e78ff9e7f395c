package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Feature   FeatureConfig   `mapstructure:"feature"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	BodyLimitKB  int64         `mapstructure:"body_limit_kb"`
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

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 身份令牌校验配置
// 令牌由外部身份提供方签发，本服务只负责校验
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

// LedgerConfig 推荐奖励与提现账本配置
type LedgerConfig struct {
	ReferralRewardXP      int64         `mapstructure:"referral_reward_xp"`
	ReferralRewardBalance int64         `mapstructure:"referral_reward_balance"`
	PayoutMinAmount       int64         `mapstructure:"payout_min_amount"`
	CodeIssueAttempts     int           `mapstructure:"code_issue_attempts"`
	TxMaxAttempts         int           `mapstructure:"tx_max_attempts"`
	TxRetryBaseDelay      time.Duration `mapstructure:"tx_retry_base_delay"`
	ProfileCacheTTL       time.Duration `mapstructure:"profile_cache_ttl"`
}

// FeatureConfig 功能开关配置
type FeatureConfig struct {
	HealSweepEnabled  bool          `mapstructure:"heal_sweep_enabled"`
	HealSweepInterval time.Duration `mapstructure:"heal_sweep_interval"`
	HealSweepBatch    int           `mapstructure:"heal_sweep_batch"`
}

// StorageConfig 导出文件归档（S3 兼容对象存储）
// Bucket 为空时不归档
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

// Enabled 是否配置了归档存储
func (c *StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// RateLimitConfig 提现申请限流
type RateLimitConfig struct {
	PayoutRequests int           `mapstructure:"payout_requests"`
	PayoutWindow   time.Duration `mapstructure:"payout_window"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

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
	v.SetEnvPrefix("INNERVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit_kb", 64)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "innervoice")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Africa/Dar_es_Salaam")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 无默认值的键也要登记，否则 Unmarshal 读不到对应环境变量
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "innervoice-identity")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ledger.referral_reward_xp", 100)
	v.SetDefault("ledger.referral_reward_balance", 100)
	v.SetDefault("ledger.payout_min_amount", 10000)
	v.SetDefault("ledger.code_issue_attempts", 5)
	v.SetDefault("ledger.tx_max_attempts", 5)
	v.SetDefault("ledger.tx_retry_base_delay", "50ms")
	v.SetDefault("ledger.profile_cache_ttl", "10m")

	v.SetDefault("feature.heal_sweep_enabled", true)
	v.SetDefault("feature.heal_sweep_interval", "1h")
	v.SetDefault("feature.heal_sweep_batch", 200)

	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "payout-exports")

	v.SetDefault("rate_limit.payout_requests", 5)
	v.SetDefault("rate_limit.payout_window", "1m")
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
	if c.Ledger.PayoutMinAmount <= 0 {
		return fmt.Errorf("配置校验失败: ledger.payout_min_amount 必须大于 0")
	}
	if c.Ledger.ReferralRewardXP < 0 || c.Ledger.ReferralRewardBalance < 0 {
		return fmt.Errorf("配置校验失败: 推荐奖励不能为负数")
	}
	if c.Ledger.CodeIssueAttempts <= 0 || c.Ledger.TxMaxAttempts <= 0 {
		return fmt.Errorf("配置校验失败: ledger 重试次数必须大于 0")
	}
	if c.Feature.HealSweepEnabled && c.Feature.HealSweepInterval <= 0 {
		return fmt.Errorf("配置校验失败: feature.heal_sweep_interval 必须大于 0")
	}
	return nil
}
