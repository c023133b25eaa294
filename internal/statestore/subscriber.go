package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DeliveryKind 投递类型
type DeliveryKind int

const (
	// DeliverySnapshot 完整快照（初次连接、重连或发现 rev 缺口后）
	DeliverySnapshot DeliveryKind = iota
	// DeliveryChange 按顺序应用的增量变更
	DeliveryChange
	// DeliveryDisconnected 订阅断开，本地视图已过期，只读
	DeliveryDisconnected
)

// SnapshotReason 快照原因
type SnapshotReason int

const (
	SnapshotInitial SnapshotReason = iota
	SnapshotReconnect
	SnapshotGap
)

func (r SnapshotReason) String() string {
	switch r {
	case SnapshotInitial:
		return "initial"
	case SnapshotReconnect:
		return "reconnect"
	case SnapshotGap:
		return "gap"
	default:
		return "unknown"
	}
}

// Delivery 投递给订阅者的状态
type Delivery struct {
	Kind   DeliveryKind
	Reason SnapshotReason     // 仅 DeliverySnapshot 有效
	State  models.SystemState // 应用后的完整视图
	Patch  models.StatePatch  // 仅 DeliveryChange 有效
}

// Subscriber 订阅共享状态变更，按 rev 顺序维护本地视图
type Subscriber struct {
	store        *Store
	logger       *zap.Logger
	pingInterval time.Duration
	maxBackoff   time.Duration

	view      models.SystemState
	synced    bool // 至少完成过一次快照
	connected bool
}

// NewSubscriber 创建订阅者
func NewSubscriber(store *Store, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		store:        store,
		logger:       logger,
		pingInterval: 15 * time.Second,
		maxBackoff:   30 * time.Second,
	}
}

// Run 持续订阅直到 ctx 取消；断连时投递 DeliveryDisconnected 并指数退避重连
func (s *Subscriber) Run(ctx context.Context, out chan<- Delivery) error {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}

		if s.connected {
			s.connected = false
			backoff = time.Second
			if !s.emit(ctx, out, Delivery{Kind: DeliveryDisconnected, State: s.view}) {
				return nil
			}
		}

		s.logger.Warn("State subscription lost, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
		}
	}
}

// session 一次订阅会话：订阅 -> 拉取快照 -> 应用增量
func (s *Subscriber) session(ctx context.Context, out chan<- Delivery) error {
	ps := s.store.client.Subscribe(ctx, s.store.keys.Changes)
	defer ps.Close()

	if err := s.awaitSubscription(ctx, ps); err != nil {
		return err
	}

	reason := SnapshotInitial
	if s.synced {
		reason = SnapshotReconnect
	}
	if err := s.resync(ctx, out, reason); err != nil {
		return err
	}
	s.connected = true

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := ps.ReceiveTimeout(ctx, s.pingInterval)
		if err != nil {
			if isTimeout(err) {
				if err := ps.Ping(ctx); err != nil {
					return fmt.Errorf("ping failed: %w", err)
				}
				continue
			}
			return err
		}

		switch m := msg.(type) {
		case *redis.Message:
			if err := s.handle(ctx, out, m.Payload); err != nil {
				return err
			}
		case *redis.Subscription:
			// 底层连接已重建，期间的变更可能丢失
			if err := s.resync(ctx, out, SnapshotReconnect); err != nil {
				return err
			}
		}
	}
}

func (s *Subscriber) awaitSubscription(ctx context.Context, ps *redis.PubSub) error {
	for {
		msg, err := ps.ReceiveTimeout(ctx, s.pingInterval)
		if err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		if _, ok := msg.(*redis.Subscription); ok {
			return nil
		}
	}
}

// handle 处理一条变更：过期丢弃、连续则应用、出现缺口则重新拉取快照
func (s *Subscriber) handle(ctx context.Context, out chan<- Delivery, payload string) error {
	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.logger.Warn("Dropping malformed change event", zap.Error(err))
		return nil
	}

	switch {
	case ev.Rev <= s.view.Rev:
		return nil
	case ev.Rev == s.view.Rev+1:
		s.view.Apply(ev.Patch)
		s.view.Rev = ev.Rev
		s.emit(ctx, out, Delivery{Kind: DeliveryChange, State: s.view, Patch: ev.Patch})
		return nil
	default:
		s.logger.Debug("Change event gap detected",
			zap.Int64("have_rev", s.view.Rev),
			zap.Int64("got_rev", ev.Rev),
		)
		return s.resync(ctx, out, SnapshotGap)
	}
}

func (s *Subscriber) resync(ctx context.Context, out chan<- Delivery, reason SnapshotReason) error {
	state, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.view = *state
	s.synced = true
	s.emit(ctx, out, Delivery{Kind: DeliverySnapshot, Reason: reason, State: s.view})
	return nil
}

func (s *Subscriber) emit(ctx context.Context, out chan<- Delivery, d Delivery) bool {
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
