package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// FileRecorder 以预先录好的文件作为采集源（命令行 announce --file）
type FileRecorder struct {
	Path string

	mu      sync.Mutex
	started bool
}

// NewFileRecorder 创建文件采集器
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{Path: path}
}

func (r *FileRecorder) Start(_ context.Context) error {
	info, err := os.Stat(r.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, r.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrDeviceUnavailable, r.Path)
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *FileRecorder) Stop() (Blob, error) {
	r.mu.Lock()
	started := r.started
	r.started = false
	r.mu.Unlock()

	if !started {
		return Blob{}, ErrNotRecording
	}

	data, err := os.ReadFile(r.Path)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to read recording: %w", err)
	}
	return Blob{Data: data, MIME: MIMEFromPath(r.Path)}, nil
}
