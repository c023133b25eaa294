package playback

import "errors"

// ErrDeviceUnavailable 扬声器不可用
var ErrDeviceUnavailable = errors.New("audio output device unavailable")

// Player 音频输出设备
type Player interface {
	// Load 设置音源（URL、data URL 或本地路径）
	Load(src string) error
	// SetVolume 设置音量 0.0-1.0
	SetVolume(v float64) error
	Play() error
	Pause() error
	SeekStart() error
}

// VolumeLevel 将 0..100 的共享音量转换为设备音量
func VolumeLevel(volume int) float64 {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	return float64(volume) / 100
}

// Halt 停止播放并回到开头
func Halt(p Player) error {
	if err := p.Pause(); err != nil {
		return err
	}
	return p.SeekStart()
}

// Start 加载音源、设置音量并开始播放
func Start(p Player, src string, volume int) error {
	if err := p.Load(src); err != nil {
		return err
	}
	if err := p.SetVolume(VolumeLevel(volume)); err != nil {
		return err
	}
	return p.Play()
}
