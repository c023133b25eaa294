package directory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestService(t *testing.T) (*Service, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewService(NewMemoryRepository(), client, ChangesStream("zil-test"), zap.NewNop()), client
}

func readChanges(t *testing.T, client *redis.Client) []models.CollectionChange {
	msgs, err := client.XRange(context.Background(), ChangesStream("zil-test"), "-", "+").Result()
	require.NoError(t, err)

	var out []models.CollectionChange
	for _, m := range msgs {
		var ch models.CollectionChange
		require.NoError(t, json.Unmarshal([]byte(m.Values["data"].(string)), &ch))
		out = append(out, ch)
	}
	return out
}

func TestService_ScheduleCRUD(t *testing.T) {
	svc, client := setupTestService(t)
	ctx := context.Background()

	e, err := svc.AddSchedule(ctx, models.ScheduleEntry{Day: models.Monday, Time: "08:00", Label: " 1. ders ", SoundRef: "classic"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "1. ders", e.Label)

	// 同一时间段允许重复
	dup, err := svc.AddSchedule(ctx, models.ScheduleEntry{Day: models.Monday, Time: "08:00", SoundRef: "school"})
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, dup.ID)

	_, err = svc.AddSchedule(ctx, models.ScheduleEntry{Day: models.Monday, Time: "07:30"})
	require.NoError(t, err)
	_, err = svc.AddSchedule(ctx, models.ScheduleEntry{Day: models.Tuesday, Time: "09:00"})
	require.NoError(t, err)

	monday, err := svc.ScheduleForDay(ctx, models.Monday)
	require.NoError(t, err)
	require.Len(t, monday, 3)
	assert.Equal(t, "07:30", monday[0].Time)
	assert.Equal(t, "08:00", monday[1].Time)

	e.Time = "08:10"
	require.NoError(t, svc.UpdateSchedule(ctx, e))
	got, err := svc.Repository().GetSchedule(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "08:10", got.Time)

	require.NoError(t, svc.DeleteSchedule(ctx, dup.ID))
	assert.ErrorIs(t, svc.DeleteSchedule(ctx, dup.ID), ErrNotFound)

	changes := readChanges(t, client)
	require.Len(t, changes, 6)
	assert.Equal(t, models.OpInsert, changes[0].Op)
	assert.Equal(t, models.CollectionSchedule, changes[0].Collection)
	assert.Equal(t, models.OpUpdate, changes[4].Op)
	assert.Equal(t, models.OpDelete, changes[5].Op)
	assert.Equal(t, dup.ID, changes[5].ID)
}

func TestService_ScheduleValidation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.AddSchedule(ctx, models.ScheduleEntry{Day: 9, Time: "08:00"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	_, err = svc.AddSchedule(ctx, models.ScheduleEntry{Day: models.Friday, Time: "8am"})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	err = svc.UpdateSchedule(ctx, models.ScheduleEntry{Day: models.Friday, Time: "08:00"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
	err = svc.UpdateSchedule(ctx, models.ScheduleEntry{ID: "missing", Day: models.Friday, Time: "08:00"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Sounds(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	sounds, err := svc.ListSounds(ctx)
	require.NoError(t, err)
	require.Len(t, sounds, 2)
	assert.Equal(t, "classic", sounds[0].ID)

	s, err := svc.AddSound(ctx, "Teneffüs", "https://cdn.example.com/teneffus.mp3")
	require.NoError(t, err)

	sounds, err = svc.ListSounds(ctx)
	require.NoError(t, err)
	assert.Len(t, sounds, 3)

	s.Name = "Teneffüs Zili"
	require.NoError(t, svc.UpdateSound(ctx, s))

	_, err = svc.AddSound(ctx, "", "x")
	assert.ErrorIs(t, err, ErrInvalidEntry)
	assert.ErrorIs(t, svc.DeleteSound(ctx, "classic"), ErrInvalidEntry)
	assert.ErrorIs(t, svc.UpdateSound(ctx, models.SoundEntry{ID: "school", Name: "x", AudioRef: "y"}), ErrInvalidEntry)

	require.NoError(t, svc.DeleteSound(ctx, s.ID))
	assert.ErrorIs(t, svc.DeleteSound(ctx, s.ID), ErrNotFound)
}

func TestService_LoginGate(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.CheckLogin(ctx, "Ayse Hoca"), ErrUserNotAllowed)

	require.NoError(t, svc.AddUser(ctx, " Ayse Hoca "))
	assert.NoError(t, svc.CheckLogin(ctx, "Ayse Hoca"))
	assert.ErrorIs(t, svc.CheckLogin(ctx, ""), ErrUserNotAllowed)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ayse Hoca"}, users)

	require.NoError(t, svc.RemoveUser(ctx, "Ayse Hoca"))
	assert.ErrorIs(t, svc.CheckLogin(ctx, "Ayse Hoca"), ErrUserNotAllowed)
	assert.ErrorIs(t, svc.AddUser(ctx, "  "), ErrInvalidEntry)
}

func TestService_WithoutChangeStream(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, "", zap.NewNop())
	_, err := svc.AddSchedule(context.Background(), models.ScheduleEntry{Day: models.Monday, Time: "08:00"})
	assert.NoError(t, err)
}

func TestService_ReplaceSchedule(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	_, err := svc.AddSchedule(ctx, models.ScheduleEntry{Day: models.Monday, Time: "08:00"})
	require.NoError(t, err)

	n, err := svc.ReplaceSchedule(ctx, []models.ScheduleEntry{
		{Day: models.Tuesday, Time: "09:00"},
		{Day: models.Wednesday, Time: "10:00"},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := svc.ListSchedule(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.Tuesday, all[0].Day)
}
