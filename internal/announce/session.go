package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/capture"
	"github.com/ertugrulornek7-byte/zilseker/internal/control"

	"go.uber.org/zap"
)

// Session 一次公告录制：获取控制权 -> 录音 -> 发布 -> 释放控制权
// 任何失败路径都会释放控制权；录音期间按周期续约
type Session struct {
	arbiter   *control.Arbiter
	recorder  capture.Recorder
	publisher *Publisher
	logger    *zap.Logger

	mu          sync.Mutex
	clientID    string
	recording   bool
	stopRenewal func()
}

// NewSession 创建录制会话
func NewSession(arbiter *control.Arbiter, recorder capture.Recorder, publisher *Publisher, logger *zap.Logger) *Session {
	return &Session{
		arbiter:   arbiter,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
	}
}

// Begin 获取控制权并开始录音
func (s *Session) Begin(ctx context.Context, clientID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recording {
		return fmt.Errorf("recording already in progress")
	}
	if err := s.arbiter.Acquire(ctx, clientID, displayName); err != nil {
		return err
	}

	if err := s.recorder.Start(ctx); err != nil {
		s.release(ctx, clientID)
		return fmt.Errorf("failed to start capture: %w", err)
	}

	s.clientID = clientID
	s.recording = true
	s.stopRenewal = s.keepAlive(clientID, displayName)
	return nil
}

// Finish 结束录音并发布，无论结果如何都释放控制权
func (s *Session) Finish(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return 0, capture.ErrNotRecording
	}
	clientID := s.clientID
	s.recording = false
	s.clientID = ""
	s.stopRenewal()
	defer s.release(ctx, clientID)

	blob, err := s.recorder.Stop()
	if err != nil {
		return 0, fmt.Errorf("failed to stop capture: %w", err)
	}
	return s.publisher.Publish(ctx, clientID, blob)
}

// Abort 放弃录音并释放控制权
func (s *Session) Abort(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.recording {
		return
	}
	s.stopRenewal()
	if _, err := s.recorder.Stop(); err != nil {
		s.logger.Debug("Discarding recording", zap.Error(err))
	}
	s.release(ctx, s.clientID)
	s.recording = false
	s.clientID = ""
}

// Recording 是否正在录音
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// keepAlive 在后台续约，返回的函数停止续约并等待其退出
func (s *Session) keepAlive(clientID, displayName string) func() {
	interval := s.arbiter.RenewInterval()
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := s.arbiter.Renew(ctx, clientID, displayName)
				switch {
				case err == nil:
				case errors.Is(err, control.ErrDenied):
					s.logger.Error("Control lease lost while recording",
						zap.String("client_id", clientID),
						zap.Error(err),
					)
					return
				case ctx.Err() == nil:
					s.logger.Warn("Failed to renew control lease", zap.Error(err))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Session) release(ctx context.Context, clientID string) {
	// 发布失败后 ctx 可能已取消，释放使用独立的上下文
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := s.arbiter.Release(ctx, clientID); err != nil {
		s.logger.Error("Failed to release control",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
	}
}
