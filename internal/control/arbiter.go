package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"
	"github.com/ertugrulornek7-byte/zilseker/internal/scheduler"
	"github.com/ertugrulornek7-byte/zilseker/internal/statestore"

	"go.uber.org/zap"
)

// DefaultLeaseTTL 控制权租约默认有效期
const DefaultLeaseTTL = 2 * time.Minute

// ErrDenied 控制权已被其他客户端持有
var ErrDenied = errors.New("control is held by another client")

// Arbiter 控制权仲裁（共享状态存储作为锁介质）
type Arbiter struct {
	store  *statestore.Store
	clock  scheduler.Clock
	ttl    time.Duration
	logger *zap.Logger
}

// NewArbiter 创建仲裁器；ttl <= 0 表示租约永不过期
func NewArbiter(store *statestore.Store, clock scheduler.Clock, ttl time.Duration, logger *zap.Logger) *Arbiter {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	return &Arbiter{
		store:  store,
		clock:  clock,
		ttl:    ttl,
		logger: logger,
	}
}

// TTL 租约有效期
func (a *Arbiter) TTL() time.Duration {
	return a.ttl
}

// TryAcquire 尝试获取控制权
// 未被持有、已由 clientID 持有（续约）或租约已过期时成功；否则返回 false，无副作用
func (a *Arbiter) TryAcquire(ctx context.Context, clientID, displayName string) (bool, error) {
	res, err := a.acquire(ctx, clientID, displayName)
	if err != nil {
		return false, err
	}
	return res.Granted, nil
}

// Acquire 获取控制权，被拒绝时返回包含持有者名称的 ErrDenied
func (a *Arbiter) Acquire(ctx context.Context, clientID, displayName string) error {
	res, err := a.acquire(ctx, clientID, displayName)
	if err != nil {
		return err
	}
	if !res.Granted {
		return fmt.Errorf("%w: held by %s", ErrDenied, holderLabel(res.Holder))
	}
	return nil
}

// Renew 持有者续约；租约已被他人回收时返回 ErrDenied
func (a *Arbiter) Renew(ctx context.Context, clientID, displayName string) error {
	res, err := a.acquire(ctx, clientID, displayName)
	if err != nil {
		return err
	}
	if !res.Granted {
		return fmt.Errorf("%w: lease lost to %s", ErrDenied, holderLabel(res.Holder))
	}
	return nil
}

// RenewInterval 长时间持有时的续约周期；租约不过期时为 0
func (a *Arbiter) RenewInterval() time.Duration {
	if a.ttl <= 0 {
		return 0
	}
	return a.ttl / 3
}

func (a *Arbiter) acquire(ctx context.Context, clientID, displayName string) (*statestore.AcquireResult, error) {
	res, err := a.store.AcquireControl(ctx, clientID, displayName, a.clock.Now().UnixMilli(), a.ttl)
	if err != nil {
		return nil, err
	}

	switch {
	case !res.Granted:
		a.logger.Debug("Control denied",
			zap.String("client_id", clientID),
			zap.String("holder_id", res.Holder.ID),
			zap.String("holder_name", res.Holder.Name),
		)
	case res.Holder.ID == clientID:
		a.logger.Debug("Control lease renewed", zap.String("client_id", clientID))
	case res.Holder.ID != "":
		a.logger.Warn("Reclaimed expired control lease",
			zap.String("client_id", clientID),
			zap.String("previous_holder_id", res.Holder.ID),
			zap.Duration("ttl", a.ttl),
		)
	default:
		a.logger.Info("Control acquired",
			zap.String("client_id", clientID),
			zap.String("display_name", displayName),
		)
	}
	return res, nil
}

// Release 释放控制权；非持有者释放为空操作
func (a *Arbiter) Release(ctx context.Context, clientID string) error {
	released, err := a.store.ReleaseControl(ctx, clientID)
	if err != nil {
		return err
	}
	if released {
		a.logger.Info("Control released", zap.String("client_id", clientID))
	} else {
		a.logger.Debug("Release ignored, caller is not the holder", zap.String("client_id", clientID))
	}
	return nil
}

// Holder 当前持有者；租约已过期时 expired 为 true
func (a *Arbiter) Holder(ctx context.Context) (lease models.ControllerLease, expired bool, err error) {
	state, err := a.store.Snapshot(ctx)
	if err != nil {
		return models.ControllerLease{}, false, err
	}
	lease = state.Lease()
	if lease.ID == "" {
		return lease, false, nil
	}
	return lease, a.Expired(lease), nil
}

// Expired 租约是否已超过有效期
func (a *Arbiter) Expired(lease models.ControllerLease) bool {
	if a.ttl <= 0 || lease.ID == "" {
		return false
	}
	return a.clock.Now().UnixMilli()-lease.AcquiredAt >= a.ttl.Milliseconds()
}

func holderLabel(l models.ControllerLease) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}
