package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	// ErrStoreUnavailable 共享状态存储不可达（网络、断连）
	ErrStoreUnavailable = errors.New("state store unavailable")
	// ErrNotController 调用方未持有控制权
	ErrNotController = errors.New("caller does not hold control")
	// ErrInvalidVolume 音量超出 0..100
	ErrInvalidVolume = errors.New("volume must be within 0..100")
)

// 哈希字段名
const (
	fieldVolume            = "volume"
	fieldControllerID      = "active_controller_id"
	fieldControllerName    = "active_controller_name"
	fieldControllerAt      = "controller_acquired_at"
	fieldAnnouncementURL   = "announcement_url"
	fieldAnnouncementSeq   = "announcement_seq"
	fieldStopEpoch         = "stop_epoch"
	fieldLastTriggeredBell = "last_triggered_bell"
	fieldLastTriggeredAt   = "last_triggered_at"
	fieldRev               = "rev"
)

// Keys 共享状态在 Redis 中的键
type Keys struct {
	Settings string // 系统状态哈希
	Changes  string // 变更通知频道
}

// NewKeys 根据前缀构建键名，如 "zil" -> "zil:system_meta:settings"
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = "zil"
	}
	return Keys{
		Settings: prefix + ":system_meta:settings",
		Changes:  prefix + ":system_meta:settings:changes",
	}
}

// AcquireResult 抢占控制权的结果
type AcquireResult struct {
	Granted bool
	// Holder 被拒绝时为当前持有者；成功时为被回收的过期持有者（可能为空或自己）
	Holder models.ControllerLease
	Rev    int64
}

// Store 共享状态存储（Redis 哈希 + 脚本合并 + Pub/Sub 通知）
type Store struct {
	client *redis.Client
	keys   Keys
	logger *zap.Logger
}

// NewStore 创建共享状态存储
func NewStore(client *redis.Client, keys Keys, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		keys:   keys,
		logger: logger,
	}
}

// Keys 返回使用的键名
func (s *Store) Keys() Keys {
	return s.keys
}

// Init 文档不存在时写入默认值（已有字段不覆盖）
func (s *Store) Init(ctx context.Context) error {
	defaults := map[string]interface{}{
		fieldVolume:          models.DefaultVolume,
		fieldControllerID:    "",
		fieldControllerName:  "",
		fieldControllerAt:    0,
		fieldAnnouncementSeq: 0,
		fieldStopEpoch:       0,
		fieldRev:             0,
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, value := range defaults {
			pipe.HSetNX(ctx, s.keys.Settings, field, value)
		}
		return nil
	})
	if err != nil {
		return unavailable("init settings", err)
	}
	return nil
}

// Snapshot 读取完整状态
func (s *Store) Snapshot(ctx context.Context) (*models.SystemState, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.Settings).Result()
	if err != nil {
		return nil, unavailable("read settings", err)
	}

	state := models.DefaultSystemState()
	if len(fields) == 0 {
		return &state, nil
	}

	state.Volume = atoiDefault(fields[fieldVolume], models.DefaultVolume)
	state.ActiveControllerID = fields[fieldControllerID]
	state.ActiveControllerName = fields[fieldControllerName]
	state.ControllerAcquiredAt = atoi64(fields[fieldControllerAt])
	state.AnnouncementURL = fields[fieldAnnouncementURL]
	state.AnnouncementSeq = atoi64(fields[fieldAnnouncementSeq])
	state.StopEpoch = atoi64(fields[fieldStopEpoch])
	state.LastTriggeredBell = fields[fieldLastTriggeredBell]
	state.LastTriggeredAt = atoi64(fields[fieldLastTriggeredAt])
	state.Rev = atoi64(fields[fieldRev])
	if state.ActiveControllerID == "" {
		state.ActiveControllerName = ""
		state.ControllerAcquiredAt = 0
	}

	return &state, nil
}

// Update 普通字段的部分合并（控制权与公告走专用操作）
type Update struct {
	Volume            *int
	StopEpoch         *int64
	LastTriggeredBell *string
	LastTriggeredAt   *int64
}

// Merge 合并更新，返回已提交的变更；没有任何字段变化时返回 nil
func (s *Store) Merge(ctx context.Context, u Update) (*models.ChangeEvent, error) {
	var args []interface{}
	if u.Volume != nil {
		if *u.Volume < 0 || *u.Volume > 100 {
			return nil, ErrInvalidVolume
		}
		args = append(args, fieldVolume, strconv.Itoa(*u.Volume))
	}
	if u.StopEpoch != nil {
		args = append(args, fieldStopEpoch, strconv.FormatInt(*u.StopEpoch, 10))
	}
	if u.LastTriggeredBell != nil {
		args = append(args, fieldLastTriggeredBell, *u.LastTriggeredBell)
	}
	if u.LastTriggeredAt != nil {
		args = append(args, fieldLastTriggeredAt, strconv.FormatInt(*u.LastTriggeredAt, 10))
	}
	if len(args) == 0 {
		return nil, nil
	}
	return s.runMerge(ctx, args)
}

// SetVolume 设置全局音量
func (s *Store) SetVolume(ctx context.Context, volume int) (*models.ChangeEvent, error) {
	return s.Merge(ctx, Update{Volume: &volume})
}

// SetLastTriggeredBell 写入去重标记及其写入时间
func (s *Store) SetLastTriggeredBell(ctx context.Context, key string, atMillis int64) (*models.ChangeEvent, error) {
	return s.Merge(ctx, Update{LastTriggeredBell: &key, LastTriggeredAt: &atMillis})
}

// BumpStopEpoch 写入 stop_epoch = max(nowMillis, 当前值+1)，保证每次请求都可被观察到
func (s *Store) BumpStopEpoch(ctx context.Context, nowMillis int64) (int64, error) {
	ev, err := s.runMerge(ctx, []interface{}{"stop_bump", strconv.FormatInt(nowMillis, 10)})
	if err != nil {
		return 0, err
	}
	if ev == nil || ev.Patch.StopEpoch == nil {
		return 0, fmt.Errorf("stop epoch was not advanced")
	}
	return *ev.Patch.StopEpoch, nil
}

func (s *Store) runMerge(ctx context.Context, args []interface{}) (*models.ChangeEvent, error) {
	res, err := mergeScript.Run(ctx, s.client, []string{s.keys.Settings}, args...).Slice()
	if err != nil {
		return nil, unavailable("merge settings", err)
	}
	if len(res) == 0 {
		return nil, nil
	}

	ev := &models.ChangeEvent{Rev: toInt64(res[0]), At: time.Now().UnixMilli()}
	for i := 1; i+1 < len(res); i += 2 {
		field := toString(res[i])
		value := toString(res[i+1])
		switch field {
		case fieldVolume:
			v := atoiDefault(value, models.DefaultVolume)
			ev.Patch.Volume = &v
		case fieldStopEpoch:
			v := atoi64(value)
			ev.Patch.StopEpoch = &v
		case fieldLastTriggeredBell:
			v := value
			ev.Patch.LastTriggeredBell = &v
		case fieldLastTriggeredAt:
			v := atoi64(value)
			ev.Patch.LastTriggeredAt = &v
		}
	}

	s.publish(ctx, ev)
	return ev, nil
}

// AcquireControl 抢占控制权：未被持有、已由自己持有、或租约已过期时成功
// ttl <= 0 表示租约永不过期
func (s *Store) AcquireControl(ctx context.Context, clientID, displayName string, nowMillis int64, ttl time.Duration) (*AcquireResult, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	res, err := acquireScript.Run(ctx, s.client, []string{s.keys.Settings},
		clientID, displayName, nowMillis, ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, unavailable("acquire control", err)
	}
	if len(res) < 3 {
		return nil, fmt.Errorf("unexpected acquire reply: %v", res)
	}

	if toInt64(res[0]) == 0 {
		result := &AcquireResult{
			Holder: models.ControllerLease{ID: toString(res[1]), Name: toString(res[2])},
		}
		if len(res) > 3 {
			result.Holder.AcquiredAt = toInt64(res[3])
		}
		return result, nil
	}

	result := &AcquireResult{
		Granted: true,
		Rev:     toInt64(res[1]),
		Holder:  models.ControllerLease{ID: toString(res[2])},
	}
	s.publish(ctx, &models.ChangeEvent{
		Rev: result.Rev,
		At:  time.Now().UnixMilli(),
		Patch: models.StatePatch{Controller: &models.ControllerLease{
			ID:         clientID,
			Name:       displayName,
			AcquiredAt: nowMillis,
		}},
	})
	return result, nil
}

// ReleaseControl 仅当 clientID 为当前持有者时清除控制权；返回是否实际释放
func (s *Store) ReleaseControl(ctx context.Context, clientID string) (bool, error) {
	if clientID == "" {
		return false, nil
	}

	rev, err := releaseScript.Run(ctx, s.client, []string{s.keys.Settings}, clientID).Int64()
	if err != nil {
		return false, unavailable("release control", err)
	}
	if rev == 0 {
		return false, nil
	}

	s.publish(ctx, &models.ChangeEvent{
		Rev:   rev,
		At:    time.Now().UnixMilli(),
		Patch: models.StatePatch{Controller: &models.ControllerLease{}},
	})
	return true, nil
}

// PublishAnnouncement 由控制权持有者发布公告，返回新的公告序号
func (s *Store) PublishAnnouncement(ctx context.Context, clientID, url string) (int64, error) {
	if clientID == "" {
		return 0, ErrNotController
	}

	res, err := announceScript.Run(ctx, s.client, []string{s.keys.Settings}, clientID, url).Slice()
	if err != nil {
		return 0, unavailable("publish announcement", err)
	}
	if len(res) == 0 || toInt64(res[0]) == 0 {
		return 0, ErrNotController
	}
	if len(res) < 3 {
		return 0, fmt.Errorf("unexpected announce reply: %v", res)
	}

	seq := toInt64(res[2])
	s.publish(ctx, &models.ChangeEvent{
		Rev:   toInt64(res[1]),
		At:    time.Now().UnixMilli(),
		Patch: models.StatePatch{Announcement: &models.Announcement{URL: url, Seq: seq}},
	})
	return seq, nil
}

// publish 广播已提交的变更；失败只记录日志，订阅者通过 rev 缺口补齐
func (s *Store) publish(ctx context.Context, ev *models.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to marshal change event", zap.Int64("rev", ev.Rev), zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, s.keys.Changes, payload).Err(); err != nil {
		s.logger.Warn("Failed to publish change event",
			zap.Int64("rev", ev.Rev),
			zap.Error(err),
		)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStoreUnavailable, op, err)
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		return atoi64(val)
	default:
		return 0
	}
}

func atoi64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
