package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/common/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Client Redis客户端类型别名
type Client = redis.Client

// NewRedisClient 创建Redis客户端；未设置的连接池参数使用 go-redis 默认值
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return redis.NewClient(opts)
}

// Ping 测试Redis连接
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// WaitReady 启动时等待 Redis 可用，失败按指数退避重试（最多 attempts 次）
func WaitReady(ctx context.Context, client *redis.Client, attempts int, logger *zap.Logger) error {
	if attempts <= 0 {
		attempts = 1
	}
	backoff := 200 * time.Millisecond

	var err error
	for i := 1; i <= attempts; i++ {
		if err = Ping(ctx, client); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		logger.Warn("Redis not ready, retrying",
			zap.String("addr", client.Options().Addr),
			zap.Int("attempt", i),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
	}
	return fmt.Errorf("redis not ready after %d attempts: %w", attempts, err)
}

// Close 关闭Redis连接
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
