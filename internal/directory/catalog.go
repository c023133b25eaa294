package directory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"
)

// Catalog 站点本地的目录视图，由快照加载、按变更流增量更新
type Catalog struct {
	mu       sync.RWMutex
	schedule map[string]models.ScheduleEntry
	sounds   map[string]models.SoundEntry
	users    map[string]struct{}
}

// NewCatalog 创建空视图
func NewCatalog() *Catalog {
	return &Catalog{
		schedule: make(map[string]models.ScheduleEntry),
		sounds:   make(map[string]models.SoundEntry),
		users:    make(map[string]struct{}),
	}
}

// Load 以快照替换视图（sounds 只包含自定义铃声）
func (c *Catalog) Load(schedule []models.ScheduleEntry, sounds []models.SoundEntry, users []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schedule = make(map[string]models.ScheduleEntry, len(schedule))
	for _, e := range schedule {
		c.schedule[e.ID] = e
	}
	c.sounds = make(map[string]models.SoundEntry, len(sounds))
	for _, s := range sounds {
		if !s.BuiltIn {
			c.sounds[s.ID] = s
		}
	}
	c.users = make(map[string]struct{}, len(users))
	for _, u := range users {
		c.users[u] = struct{}{}
	}
}

// Apply 应用一条变更；insert 与 update 都按 upsert 处理，重复投递无副作用
func (c *Catalog) Apply(ch models.CollectionChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ch.Collection {
	case models.CollectionSchedule:
		if ch.Op == models.OpDelete {
			delete(c.schedule, ch.ID)
			return nil
		}
		var e models.ScheduleEntry
		if err := json.Unmarshal(ch.Fields, &e); err != nil {
			return fmt.Errorf("failed to decode schedule entry %s: %w", ch.ID, err)
		}
		e.ID = ch.ID
		c.schedule[e.ID] = e

	case models.CollectionSounds:
		if ch.Op == models.OpDelete {
			delete(c.sounds, ch.ID)
			return nil
		}
		var s models.SoundEntry
		if err := json.Unmarshal(ch.Fields, &s); err != nil {
			return fmt.Errorf("failed to decode sound %s: %w", ch.ID, err)
		}
		s.ID = ch.ID
		c.sounds[s.ID] = s

	case models.CollectionUsers:
		if ch.Op == models.OpDelete {
			delete(c.users, ch.ID)
		} else {
			c.users[ch.ID] = struct{}{}
		}

	default:
		return fmt.Errorf("unknown collection %q", ch.Collection)
	}
	return nil
}

// Schedule 全部计划（按星期、时间排序）
func (c *Catalog) Schedule() []models.ScheduleEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.ScheduleEntry, 0, len(c.schedule))
	for _, e := range c.schedule {
		out = append(out, e)
	}
	SortSchedule(out)
	return out
}

// Sounds 内置铃声 + 自定义铃声
func (c *Catalog) Sounds() []models.SoundEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	custom := make([]models.SoundEntry, 0, len(c.sounds))
	for _, s := range c.sounds {
		custom = append(custom, s)
	}
	sort.Slice(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })
	return append(models.BuiltinSounds(), custom...)
}

// Allowed 用户名是否允许登录
func (c *Catalog) Allowed(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.users[name]
	return ok
}

// ResolveSound 将计划项的 soundRef 解析为音频地址
func (c *Catalog) ResolveSound(ref string) string {
	return ResolveSound(c.Sounds(), ref)
}

// ResolveSound soundRef 可以是铃声 ID、铃声名称或直接的音频地址；
// 找不到时回退到第一个内置铃声
func ResolveSound(sounds []models.SoundEntry, ref string) string {
	ref = strings.TrimSpace(ref)
	if isAudioURL(ref) {
		return ref
	}
	for _, s := range sounds {
		if s.ID == ref {
			return s.AudioRef
		}
	}
	for _, s := range sounds {
		if ref != "" && strings.EqualFold(s.Name, ref) {
			return s.AudioRef
		}
	}
	return models.BuiltinSounds()[0].AudioRef
}

func isAudioURL(ref string) bool {
	for _, prefix := range []string{"http://", "https://", "data:", "file://", "/"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}
