package playback

import (
	"sync"

	"go.uber.org/zap"
)

// DryPlayer 只记录日志的播放器（无扬声器的开发环境）
type DryPlayer struct {
	logger *zap.Logger

	mu      sync.Mutex
	source  string
	volume  float64
	playing bool
}

// NewDryPlayer 创建日志播放器
func NewDryPlayer(logger *zap.Logger) *DryPlayer {
	return &DryPlayer{logger: logger, volume: 1}
}

func (p *DryPlayer) Load(src string) error {
	p.mu.Lock()
	p.source = src
	p.playing = false
	p.mu.Unlock()
	p.logger.Info("Player load", zap.String("source", truncate(src, 96)))
	return nil
}

func (p *DryPlayer) SetVolume(v float64) error {
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	p.logger.Info("Player volume", zap.Float64("volume", v))
	return nil
}

func (p *DryPlayer) Play() error {
	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	p.logger.Info("Player play")
	return nil
}

func (p *DryPlayer) Pause() error {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.logger.Info("Player pause")
	return nil
}

func (p *DryPlayer) SeekStart() error {
	p.logger.Info("Player seek to start")
	return nil
}

// Playing 当前是否在播放
func (p *DryPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Source 当前音源
func (p *DryPlayer) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Volume 当前音量
func (p *DryPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
