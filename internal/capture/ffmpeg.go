package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

// FFmpegRecorder 通过 ffmpeg 从系统音频输入录制，输出 Opus/Ogg
type FFmpegRecorder struct {
	Format  string // 输入格式，如 "alsa"、"pulse"、"avfoundation"
	Device  string // 输入设备，如 "default"
	Bitrate string // 如 "32k"

	logger *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	out    bytes.Buffer
	stderr bytes.Buffer
}

// NewFFmpegRecorder 创建 ffmpeg 采集器
func NewFFmpegRecorder(format, device string, logger *zap.Logger) *FFmpegRecorder {
	return &FFmpegRecorder{
		Format:  format,
		Device:  device,
		Bitrate: "32k",
		logger:  logger,
	}
}

func (r *FFmpegRecorder) args() []string {
	return []string{
		"-loglevel", "error",
		"-f", r.Format,
		"-i", r.Device,
		"-vn",
		"-ac", "1",
		"-c:a", "libopus",
		"-b:a", r.Bitrate,
		"-f", "ogg",
		"pipe:1",
	}
}

func (r *FFmpegRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("recording already in progress")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("%w: ffmpeg not found: %v", ErrDeviceUnavailable, err)
	}

	r.out.Reset()
	r.stderr.Reset()
	cmd := exec.CommandContext(ctx, "ffmpeg", r.args()...)
	cmd.Stdout = &r.out
	cmd.Stderr = &r.stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	r.cmd = cmd

	r.logger.Info("Recording started",
		zap.String("format", r.Format),
		zap.String("device", r.Device),
	)
	return nil
}

func (r *FFmpegRecorder) Stop() (Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return Blob{}, ErrNotRecording
	}
	cmd := r.cmd
	r.cmd = nil

	// ffmpeg 收到 SIGINT 后会写完容器尾部再退出
	_ = cmd.Process.Signal(os.Interrupt)
	err := cmd.Wait()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return Blob{}, fmt.Errorf("failed to stop ffmpeg: %w", err)
	}
	if r.out.Len() == 0 {
		return Blob{}, fmt.Errorf("%w: no audio captured: %s", ErrDeviceUnavailable, r.stderr.String())
	}

	data := make([]byte, r.out.Len())
	copy(data, r.out.Bytes())

	r.logger.Info("Recording stopped", zap.Int("bytes", len(data)))
	return Blob{Data: data, MIME: "audio/ogg"}, nil
}
