package station

import (
	"context"
	"fmt"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/directory"
	"github.com/ertugrulornek7-byte/zilseker/internal/interrupt"
	"github.com/ertugrulornek7-byte/zilseker/internal/models"
	"github.com/ertugrulornek7-byte/zilseker/internal/playback"
	"github.com/ertugrulornek7-byte/zilseker/internal/scheduler"
	"github.com/ertugrulornek7-byte/zilseker/internal/statestore"

	"go.uber.org/zap"
)

// DefaultTickInterval 计划匹配周期
const DefaultTickInterval = 5 * time.Second

// Directory 站点启动时加载目录快照所需的读接口
type Directory interface {
	ListSchedule(ctx context.Context) ([]models.ScheduleEntry, error)
	ListSounds(ctx context.Context) ([]models.SoundEntry, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// Deps 站点依赖
type Deps struct {
	Store     *statestore.Store
	Directory Directory
	Feed      *directory.Feed // 为空时不订阅目录变更
	Player    playback.Player
	Cache     *playback.SoundCache
	Clock     scheduler.Clock
	Metrics   *Metrics
}

// Station 站点进程：单 goroutine 处理状态投递、目录变更与计划 tick
type Station struct {
	id     string
	tick   time.Duration
	store  *statestore.Store
	dir    Directory
	feed   *directory.Feed
	player playback.Player
	cache  *playback.SoundCache
	clock  scheduler.Clock
	m      *Metrics
	logger *zap.Logger

	catalog *directory.Catalog
	matcher *scheduler.Matcher
	stops   interrupt.Watcher

	view    models.SystemState
	synced  bool // 收到过快照
	stale   bool // 订阅断开，视图只读
	annSeq  int64
	playing string
}

// New 创建站点
func New(stationID string, tick time.Duration, deps Deps, logger *zap.Logger) *Station {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if deps.Clock == nil {
		deps.Clock = scheduler.RealClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	return &Station{
		id:      stationID,
		tick:    tick,
		store:   deps.Store,
		dir:     deps.Directory,
		feed:    deps.Feed,
		player:  deps.Player,
		cache:   deps.Cache,
		clock:   deps.Clock,
		m:       deps.Metrics,
		logger:  logger.With(zap.String("station_id", stationID)),
		catalog: directory.NewCatalog(),
		matcher: scheduler.NewMatcher(),
		stale:   true,
	}
}

// Catalog 本地目录视图
func (s *Station) Catalog() *directory.Catalog {
	return s.catalog
}

// View 本地共享状态视图
func (s *Station) View() models.SystemState {
	return s.view
}

// Stale 视图是否过期
func (s *Station) Stale() bool {
	return s.stale
}

// Run 运行直到 ctx 取消
func (s *Station) Run(ctx context.Context) error {
	// 先建消费者组再加载快照，快照之后的变更不会丢失
	if s.feed != nil {
		if err := s.feed.Prepare(ctx); err != nil {
			return fmt.Errorf("failed to prepare directory feed: %w", err)
		}
	}
	if err := s.LoadCatalog(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		go s.cache.Warm(ctx, s.soundRefs())
	}

	deliveries := make(chan statestore.Delivery, 16)
	sub := statestore.NewSubscriber(s.store, s.logger)
	go func() {
		if err := sub.Run(ctx, deliveries); err != nil {
			s.logger.Error("State subscriber stopped", zap.Error(err))
		}
	}()

	var changes chan models.CollectionChange
	if s.feed != nil {
		changes = make(chan models.CollectionChange, 16)
		go func() {
			if err := s.feed.Run(ctx, changes); err != nil {
				s.logger.Error("Directory feed stopped", zap.Error(err))
			}
		}()
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info("Station started", zap.Duration("tick_interval", s.tick))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Station stopped")
			return nil
		case d := <-deliveries:
			s.HandleDelivery(ctx, d)
		case ch := <-changes:
			s.HandleChange(ch)
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// LoadCatalog 从目录服务加载快照
func (s *Station) LoadCatalog(ctx context.Context) error {
	schedule, err := s.dir.ListSchedule(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}
	sounds, err := s.dir.ListSounds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sounds: %w", err)
	}
	users, err := s.dir.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	s.catalog.Load(schedule, sounds, users)

	s.logger.Info("Directory loaded",
		zap.Int("schedule_entries", len(schedule)),
		zap.Int("sounds", len(sounds)),
		zap.Int("users", len(users)),
	)
	return nil
}

// ============================================
// 共享状态投递
// ============================================

// HandleDelivery 处理一条共享状态投递
func (s *Station) HandleDelivery(ctx context.Context, d statestore.Delivery) {
	switch d.Kind {
	case statestore.DeliveryDisconnected:
		s.stale = true
		s.m.Connected.Set(0)
		s.logger.Warn("State view is stale, schedule matching paused")

	case statestore.DeliverySnapshot:
		s.m.Snapshots.WithLabelValues(d.Reason.String()).Inc()
		s.applySnapshot(ctx, d)

	case statestore.DeliveryChange:
		s.view = d.State
		s.m.StateRev.Set(float64(d.State.Rev))

		if d.Patch.Volume != nil {
			s.applyVolume(*d.Patch.Volume)
		}
		if d.Patch.StopEpoch != nil && s.stops.Observe(*d.Patch.StopEpoch) {
			s.halt()
		}
		if a := d.Patch.Announcement; a != nil && a.Seq > s.annSeq {
			s.annSeq = a.Seq
			s.playAnnouncement(ctx, a.URL, a.Seq)
		}
	}
}

func (s *Station) applySnapshot(ctx context.Context, d statestore.Delivery) {
	st := d.State
	first := !s.synced
	s.view = st
	s.synced = true
	s.stale = false
	s.m.Connected.Set(1)
	s.m.StateRev.Set(float64(st.Rev))
	s.applyVolume(st.Volume)

	// 启动时只采纳当前值，不重放启动前的公告与停止请求
	if first {
		s.stops.Prime(st.StopEpoch)
		s.annSeq = st.AnnouncementSeq
		s.logger.Info("State snapshot adopted",
			zap.Int64("rev", st.Rev),
			zap.Int("volume", st.Volume),
			zap.Int64("announcement_seq", st.AnnouncementSeq),
		)
		return
	}

	stopped := s.stops.Observe(st.StopEpoch)
	if stopped {
		s.halt()
	}

	if st.AnnouncementSeq <= s.annSeq {
		return
	}
	prev := s.annSeq
	s.annSeq = st.AnnouncementSeq

	// 断连期间的公告已过时；同一快照中出现停止请求时也不再播放
	if d.Reason == statestore.SnapshotReconnect || stopped {
		s.logger.Info("Skipping announcement missed while out of sync",
			zap.Int64("from_seq", prev),
			zap.Int64("to_seq", st.AnnouncementSeq),
			zap.String("reason", d.Reason.String()),
		)
		return
	}
	s.playAnnouncement(ctx, st.AnnouncementURL, st.AnnouncementSeq)
}

func (s *Station) applyVolume(volume int) {
	if err := s.player.SetVolume(playback.VolumeLevel(volume)); err != nil {
		s.m.PlaybackErrors.WithLabelValues("volume").Inc()
		s.logger.Warn("Failed to apply volume", zap.Int("volume", volume), zap.Error(err))
	}
}

func (s *Station) halt() {
	s.m.StopsApplied.Inc()
	if err := playback.Halt(s.player); err != nil {
		s.m.PlaybackErrors.WithLabelValues("stop").Inc()
		s.logger.Error("Failed to halt playback", zap.Error(err))
		return
	}
	s.logger.Info("Playback halted",
		zap.Int64("stop_epoch", s.stops.Applied()),
		zap.String("source", s.playing),
	)
	s.playing = ""
}

func (s *Station) playAnnouncement(ctx context.Context, url string, seq int64) {
	if url == "" {
		return
	}
	if err := s.play(ctx, url); err != nil {
		s.m.PlaybackErrors.WithLabelValues("announcement").Inc()
		s.logger.Error("Failed to play announcement", zap.Int64("seq", seq), zap.Error(err))
		return
	}
	s.m.AnnouncementsPlayed.Inc()
	s.playing = "announcement"
	s.logger.Info("Announcement playing", zap.Int64("seq", seq))
}

// play 只使用已缓存的本地文件；未缓存时播放原地址并在后台下载
func (s *Station) play(ctx context.Context, ref string) error {
	src := s.cache.Lookup(ctx, ref)
	return playback.Start(s.player, src, s.view.Volume)
}

// ============================================
// 目录变更
// ============================================

// HandleChange 应用一条目录变更
func (s *Station) HandleChange(ch models.CollectionChange) {
	if err := s.catalog.Apply(ch); err != nil {
		s.logger.Warn("Failed to apply directory change",
			zap.String("collection", ch.Collection),
			zap.String("id", ch.ID),
			zap.Error(err),
		)
		return
	}
	s.m.DirectoryChanges.WithLabelValues(ch.Collection).Inc()
}

// ============================================
// 计划匹配
// ============================================

// Tick 执行一次计划匹配；视图过期时跳过，避免重连前重复响铃
func (s *Station) Tick(ctx context.Context) {
	if s.stale {
		s.m.TicksSkipped.Inc()
		return
	}

	now := s.clock.Now()
	marker := scheduler.NewMarker(s.view.LastTriggeredBell, s.view.LastTriggeredAt)
	triggers := s.matcher.Tick(now, s.catalog.Schedule(), marker)
	if len(triggers) == 0 {
		return
	}
	defer s.matcher.Done()

	for _, tr := range triggers {
		s.fire(ctx, tr, now)
	}
}

func (s *Station) fire(ctx context.Context, tr scheduler.Trigger, now time.Time) {
	ref := s.catalog.ResolveSound(tr.Entry.SoundRef)
	if err := s.play(ctx, ref); err != nil {
		s.m.PlaybackErrors.WithLabelValues("bell").Inc()
		s.logger.Error("Failed to play bell",
			zap.String("trigger_key", tr.Key),
			zap.Error(err),
		)
	} else {
		s.m.BellsFired.Inc()
		s.playing = "bell"
		s.logger.Info("Bell fired",
			zap.String("trigger_key", tr.Key),
			zap.String("label", tr.Entry.Label),
			zap.String("sound", ref),
		)
	}

	// 写入去重标记；失败时依靠本地已触发集合避免本分钟内重复
	if _, err := s.store.SetLastTriggeredBell(ctx, tr.Key, now.UnixMilli()); err != nil {
		s.logger.Warn("Failed to record last triggered bell",
			zap.String("trigger_key", tr.Key),
			zap.Error(err),
		)
	}
}

func (s *Station) soundRefs() []string {
	var refs []string
	for _, snd := range s.catalog.Sounds() {
		refs = append(refs, snd.AudioRef)
	}
	return refs
}
