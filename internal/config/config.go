package config

import (
	"os"
	"strconv"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/common/config"
)

// Config 站点与客户端共用的配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	S3       config.S3Config

	// KeyPrefix Redis 键前缀，如 "zil" -> "zil:system_meta:settings"
	KeyPrefix string

	Directory struct {
		Backend string // postgres | memory
	}

	Station struct {
		ID                 string
		TickInterval       time.Duration // 默认 5秒
		Timezone           string        // 空或 "Local" 表示本机时区
		Player             string        // mqtt | dry
		SpeakerTopicPrefix string
		SoundCacheDir      string
		MetricsAddr        string // 为空时不暴露指标
	}

	Control struct {
		LeaseTTL time.Duration // 0 表示不过期
	}

	Announce struct {
		MaxBytes int    // 默认 750 KiB
		Storage  string // inline | s3 | local
		LocalDir string
	}

	IdentityFile string

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "zil"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 2
	cfg.Database.ConnMaxLifetime = 30 * time.Minute
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.DialTimeout = 3 * time.Second
	cfg.Redis.ConnectAttempts = 5
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.S3.Region = "us-east-1"
	cfg.S3.LoadFromEnv("S3")

	cfg.KeyPrefix = getEnv("KEY_PREFIX", "zil")
	cfg.Directory.Backend = getEnv("DIRECTORY_BACKEND", "postgres")

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "station"
	}
	cfg.Station.ID = getEnv("STATION_ID", hostname)
	cfg.Station.TickInterval = getEnvDuration("TICK_INTERVAL", 5*time.Second)
	cfg.Station.Timezone = getEnv("TIMEZONE", "Local")
	cfg.Station.Player = getEnv("PLAYER", "mqtt")
	cfg.Station.SpeakerTopicPrefix = getEnv("SPEAKER_TOPIC_PREFIX", "zil")
	cfg.Station.SoundCacheDir = getEnv("SOUND_CACHE_DIR", "")
	cfg.Station.MetricsAddr = getEnv("METRICS_ADDR", ":9108")

	cfg.Control.LeaseTTL = getEnvDuration("CONTROL_LEASE_TTL", 2*time.Minute)

	cfg.Announce.MaxBytes = getEnvInt("ANNOUNCE_MAX_BYTES", 750*1024)
	cfg.Announce.Storage = getEnv("ANNOUNCE_STORAGE", "inline")
	cfg.Announce.LocalDir = getEnv("ANNOUNCE_LOCAL_DIR", "")

	cfg.IdentityFile = getEnv("IDENTITY_FILE", defaultIdentityFile())

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func defaultIdentityFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".zil-identity.yaml"
	}
	return dir + "/zil/identity.yaml"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

// getEnvDuration 支持 "5s"、"2m" 以及纯数字（秒）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
