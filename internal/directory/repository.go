package directory

import (
	"context"
	"errors"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("directory entry not found")
	// ErrInvalidEntry 字段校验失败
	ErrInvalidEntry = errors.New("invalid directory entry")
	// ErrUserNotAllowed 用户名不在允许列表中
	ErrUserNotAllowed = errors.New("user is not in the allowed list")
)

// ScheduleRepository 铃声计划集合
type ScheduleRepository interface {
	ListSchedule(ctx context.Context) ([]models.ScheduleEntry, error)
	GetSchedule(ctx context.Context, id string) (*models.ScheduleEntry, error)
	InsertSchedule(ctx context.Context, e models.ScheduleEntry) error
	UpdateSchedule(ctx context.Context, e models.ScheduleEntry) error
	DeleteSchedule(ctx context.Context, id string) error
}

// SoundRepository 自定义铃声集合（内置铃声不入库）
type SoundRepository interface {
	ListSounds(ctx context.Context) ([]models.SoundEntry, error)
	GetSound(ctx context.Context, id string) (*models.SoundEntry, error)
	InsertSound(ctx context.Context, s models.SoundEntry) error
	UpdateSound(ctx context.Context, s models.SoundEntry) error
	DeleteSound(ctx context.Context, id string) error
}

// UserRepository 允许登录的用户名集合
type UserRepository interface {
	ListUsers(ctx context.Context) ([]string, error)
	AddUser(ctx context.Context, name string) error
	RemoveUser(ctx context.Context, name string) error
	HasUser(ctx context.Context, name string) (bool, error)
}

// Repository 目录服务存储
type Repository interface {
	ScheduleRepository
	SoundRepository
	UserRepository
}
