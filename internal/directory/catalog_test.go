package directory

import (
	"encoding/json"
	"testing"

	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(t *testing.T, collection string, op models.ChangeOp, id string, fields interface{}) models.CollectionChange {
	ch := models.CollectionChange{Collection: collection, Op: op, ID: id}
	if fields != nil {
		raw, err := json.Marshal(fields)
		require.NoError(t, err)
		ch.Fields = raw
	}
	return ch
}

func TestCatalog_ApplyIsIdempotent(t *testing.T) {
	c := NewCatalog()
	c.Load([]models.ScheduleEntry{{ID: "e1", Day: models.Monday, Time: "08:00"}}, nil, []string{"Ayse"})

	e2 := models.ScheduleEntry{ID: "e2", Day: models.Monday, Time: "07:00"}
	require.NoError(t, c.Apply(change(t, models.CollectionSchedule, models.OpInsert, "e2", e2)))
	require.NoError(t, c.Apply(change(t, models.CollectionSchedule, models.OpInsert, "e2", e2)))

	got := c.Schedule()
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].ID)

	require.NoError(t, c.Apply(change(t, models.CollectionSchedule, models.OpDelete, "e1", nil)))
	require.NoError(t, c.Apply(change(t, models.CollectionSchedule, models.OpDelete, "e1", nil)))
	assert.Len(t, c.Schedule(), 1)

	require.NoError(t, c.Apply(change(t, models.CollectionUsers, models.OpInsert, "Burak", nil)))
	assert.True(t, c.Allowed("Burak"))
	assert.True(t, c.Allowed("Ayse"))
	require.NoError(t, c.Apply(change(t, models.CollectionUsers, models.OpDelete, "Ayse", nil)))
	assert.False(t, c.Allowed("Ayse"))

	assert.Error(t, c.Apply(models.CollectionChange{Collection: "unknown"}))
	assert.Error(t, c.Apply(models.CollectionChange{Collection: models.CollectionSounds, Op: models.OpInsert, ID: "x", Fields: []byte("{")}))
}

func TestCatalog_ResolveSound(t *testing.T) {
	c := NewCatalog()
	custom := models.SoundEntry{ID: "s1", Name: "Teneffüs", AudioRef: "https://cdn.example.com/teneffus.mp3"}
	require.NoError(t, c.Apply(change(t, models.CollectionSounds, models.OpInsert, "s1", custom)))

	builtins := models.BuiltinSounds()
	assert.Equal(t, builtins[1].AudioRef, c.ResolveSound("school"))
	assert.Equal(t, builtins[1].AudioRef, c.ResolveSound("Okul Zili"))
	assert.Equal(t, custom.AudioRef, c.ResolveSound("s1"))
	assert.Equal(t, custom.AudioRef, c.ResolveSound("teneffüs"))
	assert.Equal(t, "https://example.com/direct.mp3", c.ResolveSound("https://example.com/direct.mp3"))

	// 未知或为空时回退到第一个内置铃声
	assert.Equal(t, builtins[0].AudioRef, c.ResolveSound("deleted-sound"))
	assert.Equal(t, builtins[0].AudioRef, c.ResolveSound(""))

	assert.Len(t, c.Sounds(), 3)
}
