package interrupt

import (
	"context"

	"github.com/ertugrulornek7-byte/zilseker/internal/scheduler"
	"github.com/ertugrulornek7-byte/zilseker/internal/statestore"

	"go.uber.org/zap"
)

// Signal 停止信号：任何客户端都可以请求停止所有站点的播放，无需控制权
type Signal struct {
	store  *statestore.Store
	clock  scheduler.Clock
	logger *zap.Logger
}

// NewSignal 创建停止信号
func NewSignal(store *statestore.Store, clock scheduler.Clock, logger *zap.Logger) *Signal {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	return &Signal{store: store, clock: clock, logger: logger}
}

// RequestStop 推进 stopEpoch，返回新的值
func (s *Signal) RequestStop(ctx context.Context) (int64, error) {
	epoch, err := s.store.BumpStopEpoch(ctx, s.clock.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	s.logger.Info("Stop requested", zap.Int64("stop_epoch", epoch))
	return epoch, nil
}

// Watcher 站点侧：记录已应用的 stopEpoch，每次增加只报告一次
type Watcher struct {
	applied int64
	primed  bool
}

// Prime 用快照中的值初始化，启动前的停止请求不再生效
func (w *Watcher) Prime(epoch int64) {
	w.applied = epoch
	w.primed = true
}

// Observe 观察到新值；严格增加时返回 true
func (w *Watcher) Observe(epoch int64) bool {
	if !w.primed {
		w.Prime(epoch)
		return false
	}
	if epoch <= w.applied {
		return false
	}
	w.applied = epoch
	return true
}

// Applied 最后一次应用的值
func (w *Watcher) Applied() int64 {
	return w.applied
}
