package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "zil", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 3*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 5, cfg.Redis.ConnectAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, "zil", cfg.KeyPrefix)
	assert.Equal(t, "postgres", cfg.Directory.Backend)
	assert.NotEmpty(t, cfg.Station.ID)
	assert.Equal(t, 5*time.Second, cfg.Station.TickInterval)
	assert.Equal(t, "Local", cfg.Station.Timezone)
	assert.Equal(t, "mqtt", cfg.Station.Player)
	assert.Equal(t, 2*time.Minute, cfg.Control.LeaseTTL)
	assert.Equal(t, 768000, cfg.Announce.MaxBytes)
	assert.Equal(t, "inline", cfg.Announce.Storage)
	assert.NotEmpty(t, cfg.IdentityFile)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DB_HOST", "db.school.local")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_POOL_SIZE", "4")
	t.Setenv("REDIS_DIAL_TIMEOUT", "1s")
	t.Setenv("DB_CONN_MAX_LIFETIME", "300")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("S3_BUCKET", "announcements")
	t.Setenv("KEY_PREFIX", "okul")
	t.Setenv("DIRECTORY_BACKEND", "memory")
	t.Setenv("STATION_ID", "hall-1")
	t.Setenv("TICK_INTERVAL", "2s")
	t.Setenv("TIMEZONE", "Europe/Istanbul")
	t.Setenv("PLAYER", "dry")
	t.Setenv("CONTROL_LEASE_TTL", "0")
	t.Setenv("ANNOUNCE_MAX_BYTES", "1024")
	t.Setenv("ANNOUNCE_STORAGE", "s3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.school.local", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 4, cfg.Redis.PoolSize)
	assert.Equal(t, time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "announcements", cfg.S3.Bucket)
	assert.Equal(t, "okul", cfg.KeyPrefix)
	assert.Equal(t, "memory", cfg.Directory.Backend)
	assert.Equal(t, "hall-1", cfg.Station.ID)
	assert.Equal(t, 2*time.Second, cfg.Station.TickInterval)
	assert.Equal(t, "Europe/Istanbul", cfg.Station.Timezone)
	assert.Equal(t, "dry", cfg.Station.Player)
	assert.Equal(t, time.Duration(0), cfg.Control.LeaseTTL)
	assert.Equal(t, 1024, cfg.Announce.MaxBytes)
	assert.Equal(t, "s3", cfg.Announce.Storage)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "90")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_DURATION", time.Second))

	t.Setenv("X_DURATION", "bogus")
	assert.Equal(t, time.Second, getEnvDuration("X_DURATION", time.Second))
}
