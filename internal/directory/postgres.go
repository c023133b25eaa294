package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ertugrulornek7-byte/zilseker/common/database"
	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"go.uber.org/zap"
)

// schema 目录服务表结构
const schema = `
CREATE TABLE IF NOT EXISTS zil_schedule (
	id         TEXT PRIMARY KEY,
	day        SMALLINT NOT NULL CHECK (day BETWEEN 1 AND 7),
	slot_time  CHAR(5) NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	sound_ref  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS zil_schedule_day_time ON zil_schedule (day, slot_time);

CREATE TABLE IF NOT EXISTS zil_sounds (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	audio_ref  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS zil_allowed_users (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresRepository 目录服务 PostgreSQL 实现
type PostgresRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresRepository 创建 PostgreSQL 存储
func NewPostgresRepository(db *sql.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema 建表（幂等，单事务）
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to ensure directory schema: %w", err)
	}
	return nil
}

// ============================================
// 铃声计划
// ============================================

// ListSchedule 按星期、时间排序返回全部计划
func (r *PostgresRepository) ListSchedule(ctx context.Context) ([]models.ScheduleEntry, error) {
	query := `
		SELECT id, day, slot_time, label, sound_ref
		FROM zil_schedule
		ORDER BY day, slot_time, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var entries []models.ScheduleEntry
	for rows.Next() {
		var e models.ScheduleEntry
		if err := rows.Scan(&e.ID, &e.Day, &e.Time, &e.Label, &e.SoundRef); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule: %w", err)
	}
	return entries, nil
}

// GetSchedule 获取单个计划
func (r *PostgresRepository) GetSchedule(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := `
		SELECT id, day, slot_time, label, sound_ref
		FROM zil_schedule
		WHERE id = $1
	`
	var e models.ScheduleEntry
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Day, &e.Time, &e.Label, &e.SoundRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule entry: %w", err)
	}
	return &e, nil
}

// InsertSchedule 新增计划
func (r *PostgresRepository) InsertSchedule(ctx context.Context, e models.ScheduleEntry) error {
	query := `
		INSERT INTO zil_schedule (id, day, slot_time, label, sound_ref)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, e.ID, int(e.Day), e.Time, e.Label, e.SoundRef); err != nil {
		return fmt.Errorf("failed to insert schedule entry: %w", err)
	}
	return nil
}

// UpdateSchedule 更新计划
func (r *PostgresRepository) UpdateSchedule(ctx context.Context, e models.ScheduleEntry) error {
	query := `
		UPDATE zil_schedule
		SET day = $2, slot_time = $3, label = $4, sound_ref = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, e.ID, int(e.Day), e.Time, e.Label, e.SoundRef)
	if err != nil {
		return fmt.Errorf("failed to update schedule entry: %w", err)
	}
	return expectAffected(res)
}

// DeleteSchedule 删除计划
func (r *PostgresRepository) DeleteSchedule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM zil_schedule WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule entry: %w", err)
	}
	return expectAffected(res)
}

// ============================================
// 自定义铃声
// ============================================

func (r *PostgresRepository) ListSounds(ctx context.Context) ([]models.SoundEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, audio_ref FROM zil_sounds ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sounds: %w", err)
	}
	defer rows.Close()

	var sounds []models.SoundEntry
	for rows.Next() {
		var s models.SoundEntry
		if err := rows.Scan(&s.ID, &s.Name, &s.AudioRef); err != nil {
			return nil, fmt.Errorf("failed to scan sound: %w", err)
		}
		sounds = append(sounds, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sounds: %w", err)
	}
	return sounds, nil
}

func (r *PostgresRepository) GetSound(ctx context.Context, id string) (*models.SoundEntry, error) {
	var s models.SoundEntry
	err := r.db.QueryRowContext(ctx, `SELECT id, name, audio_ref FROM zil_sounds WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.AudioRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sound: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) InsertSound(ctx context.Context, s models.SoundEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO zil_sounds (id, name, audio_ref) VALUES ($1, $2, $3)`,
		s.ID, s.Name, s.AudioRef)
	if err != nil {
		return fmt.Errorf("failed to insert sound: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateSound(ctx context.Context, s models.SoundEntry) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE zil_sounds SET name = $2, audio_ref = $3 WHERE id = $1`,
		s.ID, s.Name, s.AudioRef)
	if err != nil {
		return fmt.Errorf("failed to update sound: %w", err)
	}
	return expectAffected(res)
}

func (r *PostgresRepository) DeleteSound(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM zil_sounds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sound: %w", err)
	}
	return expectAffected(res)
}

// ============================================
// 允许登录的用户
// ============================================

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM zil_allowed_users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return names, nil
}

// AddUser 添加用户（已存在时忽略）
func (r *PostgresRepository) AddUser(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO zil_allowed_users (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RemoveUser(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM zil_allowed_users WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	return expectAffected(res)
}

func (r *PostgresRepository) HasUser(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM zil_allowed_users WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
