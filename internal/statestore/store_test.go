package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewStore(client, NewKeys("zil-test"), zap.NewNop())
	require.NoError(t, store.Init(context.Background()))
	return mr, store
}

func TestStore_InitDefaults(t *testing.T) {
	_, store := setupTestStore(t)

	state, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, state.Volume)
	assert.Empty(t, state.ActiveControllerID)
	assert.Empty(t, state.AnnouncementURL)
	assert.Equal(t, int64(0), state.StopEpoch)
	assert.Equal(t, int64(0), state.Rev)
}

func TestStore_InitKeepsExistingValues(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.SetVolume(ctx, 80)
	require.NoError(t, err)
	require.NoError(t, store.Init(ctx))

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80, state.Volume)
}

func TestStore_SetVolume(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	ev, err := store.SetVolume(ctx, 70)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, int64(1), ev.Rev)
	require.NotNil(t, ev.Patch.Volume)
	assert.Equal(t, 70, *ev.Patch.Volume)

	// 相同值不产生新提交
	ev, err = store.SetVolume(ctx, 70)
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = store.SetVolume(ctx, 101)
	assert.ErrorIs(t, err, ErrInvalidVolume)
	_, err = store.SetVolume(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidVolume)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70, state.Volume)
	assert.Equal(t, int64(1), state.Rev)
}

func TestStore_StopEpochNeverDecreases(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	epoch := int64(1_700_000_000_000)
	_, err := store.Merge(ctx, Update{StopEpoch: &epoch})
	require.NoError(t, err)

	older := epoch - 5000
	ev, err := store.Merge(ctx, Update{StopEpoch: &older})
	require.NoError(t, err)
	assert.Nil(t, ev)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, epoch, state.StopEpoch)
}

func TestStore_BumpStopEpoch(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	now := int64(1_700_000_000_000)
	got, err := store.BumpStopEpoch(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	// 时钟落后的客户端仍然能推进 stop_epoch
	got, err = store.BumpStopEpoch(ctx, now-60_000)
	require.NoError(t, err)
	assert.Equal(t, now+1, got)

	got, err = store.BumpStopEpoch(ctx, now+1)
	require.NoError(t, err)
	assert.Equal(t, now+2, got)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, now+2, state.StopEpoch)
	assert.Equal(t, int64(3), state.Rev)
}

func TestStore_LastTriggeredBell(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	ev, err := store.SetLastTriggeredBell(ctx, "entry-1@08:00", 1_704_096_000_000)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "entry-1@08:00", *ev.Patch.LastTriggeredBell)
	require.NotNil(t, ev.Patch.LastTriggeredAt)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "entry-1@08:00", state.LastTriggeredBell)
	assert.Equal(t, int64(1_704_096_000_000), state.LastTriggeredAt)
}

func TestStore_AcquireAndRelease(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	res, err := store.AcquireControl(ctx, "client-a", "Ayse Hoca", now, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Granted)

	// 同一客户端重入
	res, err = store.AcquireControl(ctx, "client-a", "Ayse Hoca", now+10, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Granted)

	res, err = store.AcquireControl(ctx, "client-b", "Mehmet Hoca", now+20, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Granted)
	assert.Equal(t, "client-a", res.Holder.ID)
	assert.Equal(t, "Ayse Hoca", res.Holder.Name)

	// 非持有者释放无效
	released, err := store.ReleaseControl(ctx, "client-b")
	require.NoError(t, err)
	assert.False(t, released)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "client-a", state.ActiveControllerID)
	assert.Equal(t, "Ayse Hoca", state.ActiveControllerName)

	released, err = store.ReleaseControl(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, released)

	state, err = store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.ActiveControllerID)
	assert.Empty(t, state.ActiveControllerName)
}

func TestStore_AcquireReclaimsExpiredLease(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()
	now := int64(1_700_000_000_000)

	res, err := store.AcquireControl(ctx, "client-a", "A", now, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Granted)

	res, err = store.AcquireControl(ctx, "client-b", "B", now+59_999, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Granted)

	res, err = store.AcquireControl(ctx, "client-b", "B", now+60_000, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, "client-a", res.Holder.ID)

	// 过期持有者的迟到释放不影响新持有者
	released, err := store.ReleaseControl(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, released)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "client-b", state.ActiveControllerID)
}

func TestStore_AcquireWithoutTTLNeverExpires(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	res, err := store.AcquireControl(ctx, "client-a", "A", 1, 0)
	require.NoError(t, err)
	require.True(t, res.Granted)

	res, err = store.AcquireControl(ctx, "client-b", "B", 1+int64(24*time.Hour/time.Millisecond), 0)
	require.NoError(t, err)
	assert.False(t, res.Granted)
}

func TestStore_PublishAnnouncementRequiresHolder(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.PublishAnnouncement(ctx, "client-a", "data:audio/ogg;base64,AAAA")
	assert.ErrorIs(t, err, ErrNotController)

	res, err := store.AcquireControl(ctx, "client-a", "A", time.Now().UnixMilli(), time.Minute)
	require.NoError(t, err)
	require.True(t, res.Granted)

	seq, err := store.PublishAnnouncement(ctx, "client-a", "data:audio/ogg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	// 相同内容的第二次公告依然是新序号
	seq, err = store.PublishAnnouncement(ctx, "client-a", "data:audio/ogg;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	state, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "data:audio/ogg;base64,AAAA", state.AnnouncementURL)
	assert.Equal(t, int64(2), state.AnnouncementSeq)
}

func TestStore_UnavailableWrapsError(t *testing.T) {
	mr, store := setupTestStore(t)
	mr.Close()

	_, err := store.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
