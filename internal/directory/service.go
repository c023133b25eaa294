package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	rediscommon "github.com/ertugrulornek7-byte/zilseker/common/redis"
	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChangesStream 目录变更流名称
func ChangesStream(prefix string) string {
	if prefix == "" {
		prefix = "zil"
	}
	return prefix + ":directory:changes"
}

// Service 目录服务：校验、持久化并广播集合变更
type Service struct {
	repo   Repository
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewService 创建目录服务；client 为 nil 时不广播变更
func NewService(repo Repository, client *redis.Client, stream string, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Repository 底层存储
func (s *Service) Repository() Repository {
	return s.repo
}

// ============================================
// 铃声计划
// ============================================

// ListSchedule 全部计划（按星期、时间排序）
func (s *Service) ListSchedule(ctx context.Context) ([]models.ScheduleEntry, error) {
	entries, err := s.repo.ListSchedule(ctx)
	if err != nil {
		return nil, err
	}
	SortSchedule(entries)
	return entries, nil
}

// ScheduleForDay 某一天的计划（按时间排序）
func (s *Service) ScheduleForDay(ctx context.Context, day models.Weekday) ([]models.ScheduleEntry, error) {
	entries, err := s.ListSchedule(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.ScheduleEntry
	for _, e := range entries {
		if e.Day == day {
			out = append(out, e)
		}
	}
	return out, nil
}

// AddSchedule 新增计划，返回带 ID 的记录
// 同一 day+time 允许重复
func (s *Service) AddSchedule(ctx context.Context, e models.ScheduleEntry) (models.ScheduleEntry, error) {
	e.Label = strings.TrimSpace(e.Label)
	if err := e.Validate(); err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if err := s.repo.InsertSchedule(ctx, e); err != nil {
		return models.ScheduleEntry{}, err
	}
	s.notify(ctx, models.CollectionSchedule, models.OpInsert, e.ID, e)
	return e, nil
}

// UpdateSchedule 更新计划
func (s *Service) UpdateSchedule(ctx context.Context, e models.ScheduleEntry) error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEntry)
	}
	e.Label = strings.TrimSpace(e.Label)
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if err := s.repo.UpdateSchedule(ctx, e); err != nil {
		return err
	}
	s.notify(ctx, models.CollectionSchedule, models.OpUpdate, e.ID, e)
	return nil
}

// DeleteSchedule 删除计划
func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.repo.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, models.CollectionSchedule, models.OpDelete, id, nil)
	return nil
}

// ReplaceSchedule 批量导入：逐条新增，返回成功条数
func (s *Service) ReplaceSchedule(ctx context.Context, entries []models.ScheduleEntry, clear bool) (int, error) {
	if clear {
		existing, err := s.repo.ListSchedule(ctx)
		if err != nil {
			return 0, err
		}
		for _, e := range existing {
			if err := s.DeleteSchedule(ctx, e.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return 0, err
			}
		}
	}

	n := 0
	for _, e := range entries {
		if _, err := s.AddSchedule(ctx, e); err != nil {
			return n, fmt.Errorf("failed to import %s %s: %w", e.Day, e.Time, err)
		}
		n++
	}
	return n, nil
}

// ============================================
// 铃声
// ============================================

// ListSounds 内置铃声在前，自定义铃声在后
func (s *Service) ListSounds(ctx context.Context) ([]models.SoundEntry, error) {
	custom, err := s.repo.ListSounds(ctx)
	if err != nil {
		return nil, err
	}
	return append(models.BuiltinSounds(), custom...), nil
}

// AddSound 新增自定义铃声
func (s *Service) AddSound(ctx context.Context, name, audioRef string) (models.SoundEntry, error) {
	sound := models.SoundEntry{
		ID:       uuid.New().String(),
		Name:     strings.TrimSpace(name),
		AudioRef: strings.TrimSpace(audioRef),
	}
	if err := validateSound(sound); err != nil {
		return models.SoundEntry{}, err
	}
	if err := s.repo.InsertSound(ctx, sound); err != nil {
		return models.SoundEntry{}, err
	}
	s.notify(ctx, models.CollectionSounds, models.OpInsert, sound.ID, sound)
	return sound, nil
}

// UpdateSound 更新自定义铃声
func (s *Service) UpdateSound(ctx context.Context, sound models.SoundEntry) error {
	if isBuiltin(sound.ID) {
		return fmt.Errorf("%w: built-in sound %q is read-only", ErrInvalidEntry, sound.ID)
	}
	sound.BuiltIn = false
	if err := validateSound(sound); err != nil {
		return err
	}
	if err := s.repo.UpdateSound(ctx, sound); err != nil {
		return err
	}
	s.notify(ctx, models.CollectionSounds, models.OpUpdate, sound.ID, sound)
	return nil
}

// DeleteSound 删除自定义铃声；内置铃声不可删除
func (s *Service) DeleteSound(ctx context.Context, id string) error {
	if isBuiltin(id) {
		return fmt.Errorf("%w: built-in sound %q cannot be deleted", ErrInvalidEntry, id)
	}
	if err := s.repo.DeleteSound(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, models.CollectionSounds, models.OpDelete, id, nil)
	return nil
}

func validateSound(s models.SoundEntry) error {
	if s.Name == "" {
		return fmt.Errorf("%w: sound name is required", ErrInvalidEntry)
	}
	if s.AudioRef == "" {
		return fmt.Errorf("%w: audio reference is required", ErrInvalidEntry)
	}
	return nil
}

func isBuiltin(id string) bool {
	for _, b := range models.BuiltinSounds() {
		if b.ID == id {
			return true
		}
	}
	return false
}

// ============================================
// 允许登录的用户
// ============================================

func (s *Service) ListUsers(ctx context.Context) ([]string, error) {
	return s.repo.ListUsers(ctx)
}

// AddUser 添加允许登录的用户名
func (s *Service) AddUser(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: user name is required", ErrInvalidEntry)
	}
	if err := s.repo.AddUser(ctx, name); err != nil {
		return err
	}
	s.notify(ctx, models.CollectionUsers, models.OpInsert, name, nil)
	return nil
}

// RemoveUser 移除用户名
func (s *Service) RemoveUser(ctx context.Context, name string) error {
	if err := s.repo.RemoveUser(ctx, strings.TrimSpace(name)); err != nil {
		return err
	}
	s.notify(ctx, models.CollectionUsers, models.OpDelete, name, nil)
	return nil
}

// CheckLogin 非站点客户端登录校验
func (s *Service) CheckLogin(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrUserNotAllowed)
	}
	ok, err := s.repo.HasUser(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotAllowed, name)
	}
	return nil
}

// notify 广播变更；数据已提交，广播失败只记录日志
func (s *Service) notify(ctx context.Context, collection string, op models.ChangeOp, id string, fields interface{}) {
	if s.client == nil {
		return
	}

	change := models.CollectionChange{
		Collection: collection,
		Op:         op,
		ID:         id,
		At:         time.Now().UnixMilli(),
	}
	if fields != nil {
		raw, err := json.Marshal(fields)
		if err != nil {
			s.logger.Error("Failed to marshal directory change", zap.Error(err))
			return
		}
		change.Fields = raw
	}

	if _, err := rediscommon.PublishJSONToStream(ctx, s.client, s.stream, change); err != nil {
		s.logger.Warn("Failed to publish directory change",
			zap.String("collection", collection),
			zap.String("op", string(op)),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
