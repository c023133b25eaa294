package scheduler

import (
	"sort"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"
)

// State 匹配器状态
type State int

const (
	StateIdle State = iota
	StateFiring
)

func (s State) String() string {
	if s == StateFiring {
		return "firing"
	}
	return "idle"
}

// markerTTL 共享去重标记的有效期，超过该时长的标记视为上一周期的残留
const markerTTL = time.Hour

// Marker 共享状态中的去重标记
type Marker struct {
	Key string
	At  time.Time // 写入时间，零值表示未知（视为有效）
}

// NewMarker 由 lastTriggeredBell 及其毫秒时间戳构建标记
func NewMarker(key string, atMillis int64) Marker {
	m := Marker{Key: key}
	if atMillis > 0 {
		m.At = time.UnixMilli(atMillis)
	}
	return m
}

// covers 标记在 now 时刻是否仍然屏蔽 key
func (mk Marker) covers(key string, now time.Time) bool {
	if mk.Key == "" || mk.Key != key {
		return false
	}
	return mk.At.IsZero() || now.Sub(mk.At) < markerTTL
}

// Trigger 本次 tick 需要响铃的计划项
type Trigger struct {
	Entry models.ScheduleEntry
	Slot  string // HH:MM
	Key   string // entryID@HH:MM
}

// Matcher 铃声计划匹配器（仅站点运行）
//
// 每个 tick 计算当前星期与 HH:MM，对所有匹配的计划项生成 trigger key。
// 以下情况跳过：
//   - key 等于共享状态中仍然有效的 lastTriggeredBell（本站或其他站点已触发）
//   - key 已在本分钟内由本站触发过
//
// 第二条保证同一分钟内的多个重复计划项不会因为共享标记只保存最后一个 key 而来回触发。
type Matcher struct {
	state State

	slotStart time.Time
	fired     map[string]struct{}
}

// NewMatcher 创建匹配器
func NewMatcher() *Matcher {
	return &Matcher{fired: make(map[string]struct{})}
}

// State 当前状态
func (m *Matcher) State() State {
	return m.state
}

// Tick 根据当前时间返回需要触发的计划项，并将它们记为已触发、进入 Firing 状态。
// 调用方播放完成并写入 lastTriggeredBell 后调用 Done 回到 Idle。
func (m *Matcher) Tick(now time.Time, entries []models.ScheduleEntry, last Marker) []Trigger {
	day := models.WeekdayOf(now)
	slot := models.SlotTime(now)
	start := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())
	if !start.Equal(m.slotStart) {
		m.slotStart = start
		m.fired = make(map[string]struct{})
	}

	var due []Trigger
	for _, e := range entries {
		if e.Day != day || e.Time != slot {
			continue
		}
		key := models.TriggerKey(e.ID, slot)
		if last.covers(key, now) {
			continue
		}
		if _, ok := m.fired[key]; ok {
			continue
		}
		due = append(due, Trigger{Entry: e, Slot: slot, Key: key})
	}
	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool { return due[i].Entry.ID < due[j].Entry.ID })
	for _, tr := range due {
		m.fired[tr.Key] = struct{}{}
	}
	m.state = StateFiring
	return due
}

// Done 本轮触发处理完毕
func (m *Matcher) Done() {
	m.state = StateIdle
}

// Fired 本分钟内本站是否已触发过 key
func (m *Matcher) Fired(key string) bool {
	_, ok := m.fired[key]
	return ok
}
