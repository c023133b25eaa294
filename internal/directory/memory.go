package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"
)

// MemoryRepository 内存实现（单机演示与测试）
type MemoryRepository struct {
	mu       sync.RWMutex
	schedule map[string]models.ScheduleEntry
	sounds   map[string]models.SoundEntry
	users    map[string]struct{}
}

// NewMemoryRepository 创建内存存储
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		schedule: make(map[string]models.ScheduleEntry),
		sounds:   make(map[string]models.SoundEntry),
		users:    make(map[string]struct{}),
	}
}

func (r *MemoryRepository) ListSchedule(_ context.Context) ([]models.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ScheduleEntry, 0, len(r.schedule))
	for _, e := range r.schedule {
		out = append(out, e)
	}
	SortSchedule(out)
	return out, nil
}

func (r *MemoryRepository) GetSchedule(_ context.Context, id string) (*models.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.schedule[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (r *MemoryRepository) InsertSchedule(_ context.Context, e models.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedule[e.ID] = e
	return nil
}

func (r *MemoryRepository) UpdateSchedule(_ context.Context, e models.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedule[e.ID]; !ok {
		return ErrNotFound
	}
	r.schedule[e.ID] = e
	return nil
}

func (r *MemoryRepository) DeleteSchedule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.schedule[id]; !ok {
		return ErrNotFound
	}
	delete(r.schedule, id)
	return nil
}

func (r *MemoryRepository) ListSounds(_ context.Context) ([]models.SoundEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SoundEntry, 0, len(r.sounds))
	for _, s := range r.sounds {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) GetSound(_ context.Context, id string) (*models.SoundEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sounds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) InsertSound(_ context.Context, s models.SoundEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sounds[s.ID] = s
	return nil
}

func (r *MemoryRepository) UpdateSound(_ context.Context, s models.SoundEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sounds[s.ID]; !ok {
		return ErrNotFound
	}
	r.sounds[s.ID] = s
	return nil
}

func (r *MemoryRepository) DeleteSound(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sounds[id]; !ok {
		return ErrNotFound
	}
	delete(r.sounds, id)
	return nil
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for name := range r.users {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) AddUser(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[name] = struct{}{}
	return nil
}

func (r *MemoryRepository) RemoveUser(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[name]; !ok {
		return ErrNotFound
	}
	delete(r.users, name)
	return nil
}

func (r *MemoryRepository) HasUser(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[name]
	return ok, nil
}

// SortSchedule 按星期、时间、ID 排序
func SortSchedule(entries []models.ScheduleEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}
