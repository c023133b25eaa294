package playback

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/capture"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// failedRetryAfter 下载失败后，后台预取在此时间内不再重试
const failedRetryAfter = time.Minute

// SoundCache 将远程铃声与公告缓存到本地目录，断网时仍可响铃
type SoundCache struct {
	dir        string
	httpClient *resty.Client
	logger     *zap.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{} // target -> 下载完成时关闭
	failed   map[string]time.Time     // ref -> 最近一次失败时间
}

// NewSoundCache 创建缓存；dir 为空时不缓存，Resolve 原样返回
func NewSoundCache(dir string, logger *zap.Logger) *SoundCache {
	client := resty.New().
		SetLogger(logger.Sugar()).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &SoundCache{
		dir:        dir,
		httpClient: client,
		logger:     logger,
		inflight:   make(map[string]chan struct{}),
		failed:     make(map[string]time.Time),
	}
}

// Resolve 返回可播放的地址：http(s) 下载到本地，data URL 落盘，其余原样返回。
// 会阻塞直到下载完成，不能在站点事件循环中调用
func (c *SoundCache) Resolve(ctx context.Context, ref string) (string, error) {
	if !c.cacheable(ref) {
		return ref, nil
	}

	target, err := c.targetFor(ref)
	if err != nil {
		return "", err
	}
	store := c.download
	if capture.IsDataURL(ref) {
		store = c.materialize
	}
	if err := c.fetch(ctx, ref, target, store); err != nil {
		return "", err
	}
	return target, nil
}

// Lookup 不阻塞：已缓存时返回本地路径，否则在后台预取并返回原地址
func (c *SoundCache) Lookup(ctx context.Context, ref string) string {
	if !c.cacheable(ref) {
		return ref
	}
	target, err := c.targetFor(ref)
	if err != nil {
		return ref
	}
	if exists(target) {
		return target
	}
	c.Prefetch(ctx, ref)
	return ref
}

// Prefetch 在后台缓存 ref；已在下载或最近失败过时跳过
func (c *SoundCache) Prefetch(ctx context.Context, ref string) {
	if !c.cacheable(ref) {
		return
	}
	target, err := c.targetFor(ref)
	if err != nil {
		return
	}

	c.mu.Lock()
	_, busy := c.inflight[target]
	failedAt, failed := c.failed[ref]
	c.mu.Unlock()
	if busy || (failed && time.Since(failedAt) < failedRetryAfter) {
		return
	}

	go func() {
		if _, err := c.Resolve(ctx, ref); err != nil && ctx.Err() == nil {
			c.logger.Warn("Failed to cache sound", zap.String("ref", ref), zap.Error(err))
		}
	}()
}

// Warm 预先下载，失败只记录日志
func (c *SoundCache) Warm(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.Resolve(ctx, ref); err != nil {
			c.logger.Warn("Failed to cache sound",
				zap.String("ref", ref),
				zap.Error(err),
			)
		}
	}
}

func (c *SoundCache) cacheable(ref string) bool {
	if c == nil || c.dir == "" || ref == "" {
		return false
	}
	return capture.IsDataURL(ref) || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// fetch 同一目标同时只有一个下载；其他调用者等待其结束
func (c *SoundCache) fetch(ctx context.Context, ref, target string, store func(ctx context.Context, ref, target string) error) error {
	for {
		if exists(target) {
			return nil
		}

		c.mu.Lock()
		wait, busy := c.inflight[target]
		if !busy {
			done := make(chan struct{})
			c.inflight[target] = done
			c.mu.Unlock()

			err := store(ctx, ref, target)

			c.mu.Lock()
			delete(c.inflight, target)
			if err != nil {
				c.failed[ref] = time.Now()
			} else {
				delete(c.failed, ref)
			}
			c.mu.Unlock()
			close(done)
			return err
		}
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *SoundCache) targetFor(ref string) (string, error) {
	if capture.IsDataURL(ref) {
		blob, err := capture.ParseDataURL(ref)
		if err != nil {
			return "", err
		}
		return c.pathFor(ref, extensionFor(blob.MIME)), nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid sound url %q: %w", ref, err)
	}
	return c.pathFor(ref, path.Ext(u.Path)), nil
}

func (c *SoundCache) download(ctx context.Context, ref, target string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sound cache dir: %w", err)
	}

	tmp := target + ".part"
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get(ref)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to download sound: %w", err)
	}
	if resp.IsError() {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to download sound: status %d", resp.StatusCode())
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to store sound: %w", err)
	}

	c.logger.Info("Sound cached",
		zap.String("url", ref),
		zap.String("path", target),
	)
	return nil
}

func (c *SoundCache) materialize(_ context.Context, ref, target string) error {
	blob, err := capture.ParseDataURL(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sound cache dir: %w", err)
	}
	tmp := target + ".part"
	if err := os.WriteFile(tmp, blob.Data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to store announcement: %w", err)
	}
	return os.Rename(tmp, target)
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	default:
		return ".bin"
	}
}

func (c *SoundCache) pathFor(ref, ext string) string {
	sum := sha1.Sum([]byte(ref))
	if ext == "" {
		ext = ".audio"
	}
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+ext)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
