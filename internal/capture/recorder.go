package capture

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
)

// ErrDeviceUnavailable 麦克风不存在或无权限
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// ErrNotRecording Stop 前未调用 Start
var ErrNotRecording = errors.New("capture not started")

// Blob 录制结果（已编码的音频）
type Blob struct {
	Data []byte
	MIME string
}

// Size 字节数
func (b Blob) Size() int {
	return len(b.Data)
}

// Recorder 音频采集设备
type Recorder interface {
	// Start 开始录制；设备不可用时返回 ErrDeviceUnavailable
	Start(ctx context.Context) error
	// Stop 结束录制并返回编码后的音频
	Stop() (Blob, error)
}

// MIMEFromPath 根据扩展名推断 MIME 类型
func MIMEFromPath(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
