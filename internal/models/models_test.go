package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayOf(t *testing.T) {
	// 2024-01-01 是周一
	monday := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, Monday, WeekdayOf(monday))
	assert.Equal(t, Saturday, WeekdayOf(monday.AddDate(0, 0, 5)))
	assert.Equal(t, Sunday, WeekdayOf(monday.AddDate(0, 0, 6)))
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want Weekday
	}{
		{"1", Monday},
		{"7", Sunday},
		{"friday", Friday},
		{"Wed", Wednesday},
		{"Pazartesi", Monday},
		{"Çarşamba", Wednesday},
		{"cumartesi", Saturday},
		{" pazar ", Sunday},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeekday(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseWeekday("8")
	assert.Error(t, err)
	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestScheduleEntry_Validate(t *testing.T) {
	assert.NoError(t, ScheduleEntry{Day: Monday, Time: "08:00"}.Validate())
	assert.Error(t, ScheduleEntry{Day: 0, Time: "08:00"}.Validate())
	assert.Error(t, ScheduleEntry{Day: Monday, Time: "8:00"}.Validate())
	assert.Error(t, ScheduleEntry{Day: Monday, Time: "24:00"}.Validate())
}

func TestSlotTimeAndTriggerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 4, 0, time.UTC)
	assert.Equal(t, "08:00", SlotTime(now))
	assert.Equal(t, "entry-1@08:00", TriggerKey("entry-1", SlotTime(now)))
}

func TestSystemState_Apply(t *testing.T) {
	s := DefaultSystemState()
	assert.Equal(t, DefaultVolume, s.Volume)
	assert.False(t, s.Controlled())

	vol := 75
	s.Apply(StatePatch{Volume: &vol, Controller: &ControllerLease{ID: "a", Name: "Ayse", AcquiredAt: 10}})
	assert.Equal(t, 75, s.Volume)
	assert.True(t, s.Controlled())
	assert.Equal(t, ControllerLease{ID: "a", Name: "Ayse", AcquiredAt: 10}, s.Lease())

	// 清除控制权时名称一并清除
	s.Apply(StatePatch{Controller: &ControllerLease{Name: "stale"}})
	assert.False(t, s.Controlled())
	assert.Empty(t, s.ActiveControllerName)
	assert.Zero(t, s.ControllerAcquiredAt)

	s.Apply(StatePatch{Announcement: &Announcement{URL: "u2", Seq: 2}})
	s.Apply(StatePatch{Announcement: &Announcement{URL: "u1", Seq: 1}})
	assert.Equal(t, "u2", s.AnnouncementURL)
	assert.Equal(t, int64(2), s.AnnouncementSeq)

	high, low := int64(200), int64(100)
	s.Apply(StatePatch{StopEpoch: &high})
	s.Apply(StatePatch{StopEpoch: &low})
	assert.Equal(t, int64(200), s.StopEpoch)

	assert.True(t, StatePatch{}.Empty())
	assert.False(t, StatePatch{StopEpoch: &low}.Empty())
}
