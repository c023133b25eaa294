package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置（目录服务使用）
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
	// ConnMaxLifetime 连接最长存活时间，0 表示不限
	ConnMaxLifetime time.Duration
}

// RedisConfig Redis配置（共享状态存储 + 目录变更流）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// DialTimeout 建立连接超时；站点在断网时依赖它尽快进入重连
	DialTimeout time.Duration
	// ConnectAttempts 启动时等待 Redis 就绪的最大尝试次数
	ConnectAttempts int
}

// MQTTConfig MQTT配置（站点扬声器）
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// S3Config 对象存储配置（公告音频）
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
	KeyID    string
	AppKey   string
	// PublicURL 公告播放地址前缀，如 "https://cdn.example.com/announcements"
	PublicURL string
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量加载数据库配置
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			c.Port = v
		}
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_NAME"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
	if v, ok := envInt(prefix + "_MAX_CONNS"); ok {
		c.MaxConns = v
	}
	if v, ok := envInt(prefix + "_MAX_IDLE"); ok {
		c.MaxIdle = v
	}
	if v, ok := envDuration(prefix + "_CONN_MAX_LIFETIME"); ok {
		c.ConnMaxLifetime = v
	}
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		if v, err := strconv.Atoi(db); err == nil {
			c.DB = v
		}
	}
	if v, ok := envInt(prefix + "_POOL_SIZE"); ok {
		c.PoolSize = v
	}
	if v, ok := envDuration(prefix + "_DIAL_TIMEOUT"); ok {
		c.DialTimeout = v
	}
	if v, ok := envInt(prefix + "_CONNECT_ATTEMPTS"); ok {
		c.ConnectAttempts = v
	}
}

// LoadFromEnv 从环境变量加载MQTT配置
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	if broker := os.Getenv(prefix + "_BROKER"); broker != "" {
		c.Broker = broker
	}
	if clientID := os.Getenv(prefix + "_CLIENT_ID"); clientID != "" {
		c.ClientID = clientID
	}
	if username := os.Getenv(prefix + "_USERNAME"); username != "" {
		c.Username = username
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
}

// LoadFromEnv 从环境变量加载S3配置
func (c *S3Config) LoadFromEnv(prefix string) {
	if endpoint := os.Getenv(prefix + "_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}
	if region := os.Getenv(prefix + "_REGION"); region != "" {
		c.Region = region
	}
	if bucket := os.Getenv(prefix + "_BUCKET"); bucket != "" {
		c.Bucket = bucket
	}
	if keyID := os.Getenv(prefix + "_KEY_ID"); keyID != "" {
		c.KeyID = keyID
	}
	if appKey := os.Getenv(prefix + "_APP_KEY"); appKey != "" {
		c.AppKey = appKey
	}
	if publicURL := os.Getenv(prefix + "_PUBLIC_URL"); publicURL != "" {
		c.PublicURL = publicURL
	}
}

func envInt(key string) (int, bool) {
	v, err := strconv.Atoi(os.Getenv(key))
	return v, err == nil
}

// envDuration 接受 "5s" 形式或秒数
func envDuration(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, true
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}
