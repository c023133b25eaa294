package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday 星期（1=周一 ... 7=周日）
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// 英文缩写与土耳其语星期名称
var weekdayAliases = map[string]Weekday{
	"mon": Monday, "tue": Tuesday, "wed": Wednesday, "thu": Thursday,
	"fri": Friday, "sat": Saturday, "sun": Sunday,
	"pazartesi": Monday, "salı": Tuesday, "sali": Tuesday, "çarşamba": Wednesday,
	"carsamba": Wednesday, "perşembe": Thursday, "persembe": Thursday,
	"cuma": Friday, "cumartesi": Saturday, "pazar": Sunday,
}

// WeekdayOf 计算时间对应的星期
func WeekdayOf(t time.Time) Weekday {
	if t.Weekday() == time.Sunday {
		return Sunday
	}
	return Weekday(t.Weekday())
}

// Valid 是否在 1..7 范围内
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday 解析星期（数字 1-7、英文名、缩写或土耳其语名称）
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if d := Weekday(n); d.Valid() {
			return d, nil
		}
		return 0, fmt.Errorf("weekday out of range: %d", n)
	}
	lower := strings.ToLower(s)
	for i := Monday; i <= Sunday; i++ {
		if strings.ToLower(weekdayNames[i]) == lower {
			return i, nil
		}
	}
	if d, ok := weekdayAliases[lower]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown weekday: %q", s)
}

// ScheduleEntry 铃声计划项（同一 day+time 允许重复，且都会触发）
type ScheduleEntry struct {
	ID       string  `json:"id"`
	Day      Weekday `json:"day"`
	Time     string  `json:"time"` // HH:MM，24小时制
	Label    string  `json:"label"`
	SoundRef string  `json:"sound_ref"`
}

// SlotTime 将时间截断为分钟并格式化为 HH:MM
func SlotTime(t time.Time) string {
	return t.Format("15:04")
}

// ValidSlotTime 检查 HH:MM 格式
func ValidSlotTime(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// Validate 校验计划项
func (e ScheduleEntry) Validate() error {
	if !e.Day.Valid() {
		return fmt.Errorf("invalid day %d", int(e.Day))
	}
	if !ValidSlotTime(e.Time) {
		return fmt.Errorf("invalid time %q, expected HH:MM", e.Time)
	}
	return nil
}

// TriggerKey 去重标识：计划项ID + "@" + HH:MM
func TriggerKey(entryID, slot string) string {
	return entryID + "@" + slot
}
