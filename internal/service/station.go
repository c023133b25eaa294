package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ertugrulornek7-byte/zilseker/common/database"
	"github.com/ertugrulornek7-byte/zilseker/common/mqtt"
	rediscommon "github.com/ertugrulornek7-byte/zilseker/common/redis"
	"github.com/ertugrulornek7-byte/zilseker/internal/config"
	"github.com/ertugrulornek7-byte/zilseker/internal/directory"
	"github.com/ertugrulornek7-byte/zilseker/internal/playback"
	"github.com/ertugrulornek7-byte/zilseker/internal/scheduler"
	"github.com/ertugrulornek7-byte/zilseker/internal/station"
	"github.com/ertugrulornek7-byte/zilseker/internal/statestore"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// StationService 站点服务（整合各层）
type StationService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	registry    *prometheus.Registry
	logger      *zap.Logger

	station *station.Station
}

// NewStationService 创建站点服务
func NewStationService(cfg *config.Config, logger *zap.Logger) (*StationService, error) {
	ctx := context.Background()

	// 1. 连接 Redis
	// 站点常随系统启动，Redis 可能稍后才就绪
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.WaitReady(ctx, redisClient, cfg.Redis.ConnectAttempts, logger); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	store := statestore.NewStore(redisClient, statestore.NewKeys(cfg.KeyPrefix), logger)
	if err := store.Init(ctx); err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	// 2. 目录服务
	repo, db, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	stream := directory.ChangesStream(cfg.KeyPrefix)
	dir := directory.NewService(repo, redisClient, stream, logger)
	feed := directory.NewFeed(redisClient, stream, cfg.Station.ID, logger)

	s := &StationService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		registry:    prometheus.NewRegistry(),
		logger:      logger,
	}

	// 3. 扬声器
	player, err := s.buildPlayer()
	if err != nil {
		_ = s.Stop()
		return nil, err
	}

	// 4. 时钟
	loc, err := scheduler.LoadLocation(cfg.Station.Timezone)
	if err != nil {
		_ = s.Stop()
		return nil, err
	}

	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s.station = station.New(cfg.Station.ID, cfg.Station.TickInterval, station.Deps{
		Store:     store,
		Directory: dir,
		Feed:      feed,
		Player:    player,
		Cache:     playback.NewSoundCache(cfg.Station.SoundCacheDir, logger),
		Clock:     scheduler.RealClock{Location: loc},
		Metrics:   station.NewMetrics(s.registry),
	}, logger)

	return s, nil
}

func (s *StationService) buildPlayer() (playback.Player, error) {
	cfg := s.config
	switch cfg.Station.Player {
	case "dry":
		return playback.NewDryPlayer(s.logger), nil
	case "mqtt", "":
		mqttCfg := cfg.MQTT
		if mqttCfg.ClientID == "" {
			mqttCfg.ClientID = "zil-station-" + cfg.Station.ID
		}
		client, err := mqtt.NewClient(&mqttCfg, s.logger)
		if err != nil {
			return nil, err
		}
		s.mqttClient = client

		player := playback.NewMQTTPlayer(client, cfg.Station.SpeakerTopicPrefix, cfg.Station.ID, client.QoS(), s.logger)

		// 扬声器上报的状态只用于日志
		statusTopic := player.Topic() + "/status"
		if err := client.Subscribe(statusTopic, client.QoS(), func(topic string, payload []byte) error {
			s.logger.Debug("Speaker status", zap.String("topic", topic), zap.ByteString("payload", payload))
			return nil
		}); err != nil {
			s.logger.Warn("Failed to subscribe to speaker status", zap.Error(err))
		}
		return player, nil
	default:
		return nil, fmt.Errorf("unknown player %q", cfg.Station.Player)
	}
}

// Start 启动服务，阻塞直到 ctx 取消
func (s *StationService) Start(ctx context.Context) error {
	s.logger.Info("Starting station service",
		zap.String("station_id", s.config.Station.ID),
		zap.String("directory_backend", s.config.Directory.Backend),
		zap.String("player", s.config.Station.Player),
	)

	if addr := s.config.Station.MetricsAddr; addr != "" {
		go func() {
			if err := station.ServeMetrics(ctx, addr, s.registry, s.logger); err != nil {
				s.logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	return s.station.Run(ctx)
}

// Stop 停止服务
func (s *StationService) Stop() error {
	s.logger.Info("Stopping station service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}
