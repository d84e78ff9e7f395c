package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sirtheprogrammer/innervoice/config"
)

// Client Redis 客户端封装：账户资料缓存与提现限流
// 所有方法允许 nil 接收者，Redis 不可用时缓存失效、限流放行
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
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromRedis 包装已有的 go-redis 客户端
func NewFromRedis(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── 账户资料缓存 ──

const (
	profilePrefix    = "account:profile:"
	profileGenPrefix = "account:profile:gen:"
	// 版本号只需覆盖一次读库到回写的时间窗
	profileGenTTL = 24 * time.Hour
)

var errStaleProfile = errors.New("资料版本已变化")

// GetProfile 读取缓存，未命中返回 false
func (c *Client) GetProfile(ctx context.Context, accountID string, dest interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, profilePrefix+accountID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// 脏数据直接丢弃
		_ = c.rdb.Del(ctx, profilePrefix+accountID).Err()
		return false, nil
	}
	return true, nil
}

// ProfileVersion 读取资料版本号，从未失效过时为 0
func (c *Client) ProfileVersion(ctx context.Context, accountID string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	v, err := c.rdb.Get(ctx, profileGenPrefix+accountID).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetProfile 版本号仍为 version 时写入缓存，否则放弃
// WATCH 版本号键，比较与写入之间发生失效同样放弃
func (c *Client) SetProfile(ctx context.Context, accountID string, profile interface{}, version int64, ttl time.Duration) error {
	if c == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	genKey := profileGenPrefix + accountID
	err = c.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if current != version {
			return errStaleProfile
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, profilePrefix+accountID, raw, ttl)
			return nil
		})
		return err
	}, genKey)

	if errors.Is(err, errStaleProfile) || errors.Is(err, goredis.TxFailedErr) {
		c.logger.Debug("资料已变动，放弃回写缓存", zap.String("account_id", accountID))
		return nil
	}
	return err
}

// InvalidateProfile 账本变动后清除缓存并递增版本号
func (c *Client) InvalidateProfile(ctx context.Context, accountIDs ...string) error {
	if c == nil || len(accountIDs) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	queued := 0
	for _, id := range accountIDs {
		if id == "" {
			continue
		}
		pipe.Del(ctx, profilePrefix+id)
		pipe.Incr(ctx, profileGenPrefix+id)
		pipe.Expire(ctx, profileGenPrefix+id, profileGenTTL)
		queued++
	}
	if queued == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ── 滑动窗口限流 ──

const rateLimitPrefix = "ratelimit:"

// Allow 在 window 内最多放行 limit 次，超出返回 false
// 以有序集合记录每次请求的时间戳；清理、登记、计数在同一个 MULTI 中完成
func (c *Client) Allow(ctx context.Context, bucket string, limit int, window time.Duration) (bool, error) {
	if c == nil || limit <= 0 || window <= 0 {
		return true, nil
	}

	key := rateLimitPrefix + bucket
	now := time.Now()
	floor := strconv.FormatInt(now.Add(-window).UnixNano(), 10)
	member := uuid.NewString()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", floor)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: member})
	count := pipe.ZCard(ctx, key)
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if count.Val() > int64(limit) {
		// 被拒绝的请求不占用名额
		if err := c.rdb.ZRem(ctx, key, member).Err(); err != nil {
			c.logger.Warn("撤销限流登记失败", zap.String("bucket", bucket), zap.Error(err))
		}
		return false, nil
	}
	return true, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
