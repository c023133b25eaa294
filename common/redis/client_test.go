package redis

import (
	"context"
	"testing"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRedisClient_Options(t *testing.T) {
	client := NewRedisClient(&config.RedisConfig{Addr: "redis:6379", DB: 2, PoolSize: 4, DialTimeout: time.Second})
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

func TestWaitReady(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr(), DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = Close(client) })

	require.NoError(t, WaitReady(context.Background(), client, 3, zap.NewNop()))

	mr.Close()
	err := WaitReady(context.Background(), client, 2, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestWaitReady_RecoversWhenServerComesBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr(), DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = Close(client) })

	mr.Close()
	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = mr.Restart()
	}()

	require.NoError(t, WaitReady(context.Background(), client, 5, zap.NewNop()))
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
