package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// Clock 当前时间来源，测试中可注入固定时间
type Clock interface {
	Now() time.Time
}

// RealClock 系统时间（按配置的时区）
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

// MockClock 可手动推进的时钟
// 例如 "假设现在是周一 07:59:58"
type MockClock struct {
	mu       sync.Mutex
	MockTime time.Time
}

// NewMockClock 创建固定在 t 的时钟
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{MockTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MockTime
}

// Set 设置当前时间
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	m.MockTime = t
	m.mu.Unlock()
}

// Advance 向前推进 d
func (m *MockClock) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MockTime = m.MockTime.Add(d)
	return m.MockTime
}

// LoadLocation 解析时区名称，空字符串或 "Local" 表示本地时区
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}
