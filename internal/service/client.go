package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/common/database"
	rediscommon "github.com/ertugrulornek7-byte/zilseker/common/redis"
	"github.com/ertugrulornek7-byte/zilseker/internal/announce"
	"github.com/ertugrulornek7-byte/zilseker/internal/capture"
	"github.com/ertugrulornek7-byte/zilseker/internal/config"
	"github.com/ertugrulornek7-byte/zilseker/internal/control"
	"github.com/ertugrulornek7-byte/zilseker/internal/directory"
	"github.com/ertugrulornek7-byte/zilseker/internal/identity"
	"github.com/ertugrulornek7-byte/zilseker/internal/interrupt"
	"github.com/ertugrulornek7-byte/zilseker/internal/models"
	"github.com/ertugrulornek7-byte/zilseker/internal/scheduler"
	"github.com/ertugrulornek7-byte/zilseker/internal/statestore"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ClientService 操作端服务：登录、控制权、公告、停止、音量与目录管理
type ClientService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	store     *statestore.Store
	arbiter   *control.Arbiter
	signal    *interrupt.Signal
	publisher *announce.Publisher
	directory *directory.Service
	identity  *identity.FileStore
}

// Status 当前共享状态概览
type Status struct {
	State         models.SystemState
	LeaseExpired  bool
	Identity      identity.Identity
	HoldsControl  bool
	LastBellLabel string
}

// NewClientService 创建操作端服务
func NewClientService(cfg *config.Config, logger *zap.Logger) (*ClientService, error) {
	ctx := context.Background()

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	repo, db, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	blobs, err := buildBlobStore(cfg)
	if err != nil {
		_ = database.Close(db)
		_ = redisClient.Close()
		return nil, err
	}

	s, err := newClientService(ctx, cfg, redisClient, repo, blobs, scheduler.RealClock{}, logger)
	if err != nil {
		_ = database.Close(db)
		_ = redisClient.Close()
		return nil, err
	}
	s.db = db
	return s, nil
}

func newClientService(ctx context.Context, cfg *config.Config, redisClient *redis.Client, repo directory.Repository, blobs announce.BlobStore, clock scheduler.Clock, logger *zap.Logger) (*ClientService, error) {
	store := statestore.NewStore(redisClient, statestore.NewKeys(cfg.KeyPrefix), logger)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	return &ClientService{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
		store:       store,
		arbiter:     control.NewArbiter(store, clock, cfg.Control.LeaseTTL, logger),
		signal:      interrupt.NewSignal(store, clock, logger),
		publisher:   announce.NewPublisher(store, blobs, cfg.Announce.MaxBytes, logger),
		directory:   directory.NewService(repo, redisClient, directory.ChangesStream(cfg.KeyPrefix), logger),
		identity:    identity.NewFileStore(cfg.IdentityFile),
	}, nil
}

// Directory 目录服务
func (s *ClientService) Directory() *directory.Service {
	return s.directory
}

// Close 关闭连接
func (s *ClientService) Close() error {
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	return rediscommon.Close(s.redisClient)
}

// ============================================
// 身份
// ============================================

// Login 以允许的用户名登录本机
func (s *ClientService) Login(ctx context.Context, name string) (identity.Identity, error) {
	if err := s.directory.CheckLogin(ctx, name); err != nil {
		return identity.Identity{}, err
	}
	return s.identity.Login(name)
}

// LoginStation 将本机标记为站点
func (s *ClientService) LoginStation() (identity.Identity, error) {
	return s.identity.LoginStation()
}

// Logout 退出登录；持有控制权时先释放
func (s *ClientService) Logout(ctx context.Context) error {
	id, err := s.identity.Load()
	if err != nil {
		return err
	}
	if err := s.arbiter.Release(ctx, id.ClientID); err != nil {
		s.logger.Warn("Failed to release control on logout", zap.Error(err))
	}
	return s.identity.Logout()
}

// Whoami 本机身份
func (s *ClientService) Whoami() (identity.Identity, error) {
	return s.identity.Load()
}

// ============================================
// 控制权 / 公告 / 停止 / 音量
// ============================================

// Acquire 获取控制权
func (s *ClientService) Acquire(ctx context.Context) error {
	id, err := s.identity.Require()
	if err != nil {
		return err
	}
	return s.arbiter.Acquire(ctx, id.ClientID, id.DisplayName())
}

// Release 释放控制权（非持有者调用无效果）
func (s *ClientService) Release(ctx context.Context) error {
	id, err := s.identity.Load()
	if err != nil {
		return err
	}
	return s.arbiter.Release(ctx, id.ClientID)
}

// Announce 获取控制权、录音、发布并释放控制权。
// wait 在录音开始后调用，返回时结束录音；返回错误则放弃本次公告。
func (s *ClientService) Announce(ctx context.Context, rec capture.Recorder, wait func(ctx context.Context) error) (int64, error) {
	id, err := s.identity.Require()
	if err != nil {
		return 0, err
	}

	session := announce.NewSession(s.arbiter, rec, s.publisher, s.logger)
	if err := session.Begin(ctx, id.ClientID, id.DisplayName()); err != nil {
		return 0, err
	}

	if wait != nil {
		if err := wait(ctx); err != nil {
			session.Abort(ctx)
			return 0, err
		}
	}
	return session.Finish(ctx)
}

// Stop 广播停止信号，任何人都可以调用
func (s *ClientService) Stop(ctx context.Context) (int64, error) {
	return s.signal.RequestStop(ctx)
}

// SetVolume 设置全局音量
func (s *ClientService) SetVolume(ctx context.Context, volume int) error {
	_, err := s.store.SetVolume(ctx, volume)
	return err
}

// Status 读取当前状态
func (s *ClientService) Status(ctx context.Context) (*Status, error) {
	state, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.identity.Load()
	if err != nil {
		return nil, err
	}

	st := &Status{
		State:        *state,
		LeaseExpired: state.Controlled() && s.arbiter.Expired(state.Lease()),
		Identity:     id,
		HoldsControl: state.ActiveControllerID != "" && state.ActiveControllerID == id.ClientID,
	}
	if state.LastTriggeredBell != "" {
		st.LastBellLabel = s.bellLabel(ctx, state.LastTriggeredBell)
	}
	return st, nil
}

func (s *ClientService) bellLabel(ctx context.Context, key string) string {
	entries, err := s.directory.ListSchedule(ctx)
	if err != nil {
		return key
	}
	for _, e := range entries {
		if models.TriggerKey(e.ID, e.Time) == key {
			if e.Label != "" {
				return e.Label + " (" + e.Time + ")"
			}
			return e.Day.String() + " " + e.Time
		}
	}
	return key
}

// Watch 订阅共享状态变化，直到 ctx 取消
func (s *ClientService) Watch(ctx context.Context, fn func(statestore.Delivery)) error {
	out := make(chan statestore.Delivery, 16)
	sub := statestore.NewSubscriber(s.store, s.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- sub.Run(ctx, out) }()

	for {
		select {
		case <-ctx.Done():
			return <-errCh
		case d := <-out:
			fn(d)
		}
	}
}

// ============================================
// 铃声计划导入导出
// ============================================

// ExportSchedule 导出为 Excel
func (s *ClientService) ExportSchedule(ctx context.Context) ([]byte, error) {
	entries, err := s.directory.ListSchedule(ctx)
	if err != nil {
		return nil, err
	}
	return directory.ExportScheduleXLSX(entries)
}

// ImportSchedule 从 Excel 导入；replace 为 true 时先清空现有计划
func (s *ClientService) ImportSchedule(ctx context.Context, entries []models.ScheduleEntry, replace bool) (int, error) {
	if len(entries) == 0 {
		return 0, errors.New("no schedule entries to import")
	}
	return s.directory.ReplaceSchedule(ctx, entries, replace)
}

// RecordFor 返回按固定时长录音的 wait 函数
func RecordFor(d time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
