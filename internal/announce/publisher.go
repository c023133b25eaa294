package announce

import (
	"context"
	"errors"
	"fmt"

	"github.com/ertugrulornek7-byte/zilseker/internal/capture"
	"github.com/ertugrulornek7-byte/zilseker/internal/control"
	"github.com/ertugrulornek7-byte/zilseker/internal/statestore"

	"go.uber.org/zap"
)

// DefaultMaxBytes 公告大小上限（750 KiB）
const DefaultMaxBytes = 750 * 1024

var (
	// ErrTooLarge 录音超过大小上限，需要重新录制更短的公告
	ErrTooLarge = errors.New("announcement exceeds size limit")
	// ErrPublishFailed 写入共享状态失败
	ErrPublishFailed = errors.New("failed to publish announcement")
)

// Publisher 公告发布
type Publisher struct {
	store    *statestore.Store
	blobs    BlobStore
	maxBytes int
	logger   *zap.Logger
}

// NewPublisher 创建发布器；blobs 为 nil 时以 data URL 内联
func NewPublisher(store *statestore.Store, blobs BlobStore, maxBytes int, logger *zap.Logger) *Publisher {
	if blobs == nil {
		blobs = InlineStore{}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Publisher{
		store:    store,
		blobs:    blobs,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// MaxBytes 大小上限
func (p *Publisher) MaxBytes() int {
	return p.maxBytes
}

// Publish 发布公告，返回新的公告序号
// 调用方必须持有控制权；超过上限时不修改任何共享状态
func (p *Publisher) Publish(ctx context.Context, clientID string, blob capture.Blob) (int64, error) {
	if blob.Size() > p.maxBytes {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, blob.Size(), p.maxBytes)
	}
	if blob.Size() == 0 {
		return 0, fmt.Errorf("%w: empty recording", capture.ErrDeviceUnavailable)
	}

	url, err := p.blobs.Put(ctx, blob.Data, blob.MIME)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	seq, err := p.store.PublishAnnouncement(ctx, clientID, url)
	if err != nil {
		if errors.Is(err, statestore.ErrNotController) {
			return 0, fmt.Errorf("%w: %w", control.ErrDenied, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	p.logger.Info("Announcement published",
		zap.String("client_id", clientID),
		zap.Int("bytes", blob.Size()),
		zap.Int64("seq", seq),
	)
	return seq, nil
}
