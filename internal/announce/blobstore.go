package announce

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ertugrulornek7-byte/zilseker/common/config"
	"github.com/ertugrulornek7-byte/zilseker/internal/capture"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

// BlobStore 公告音频存放位置，返回站点可播放的地址
type BlobStore interface {
	Put(ctx context.Context, data []byte, mimeType string) (string, error)
}

// InlineStore 以 data URL 形式直接写入共享状态
type InlineStore struct{}

func (InlineStore) Put(_ context.Context, data []byte, mimeType string) (string, error) {
	return capture.Blob{Data: data, MIME: mimeType}.DataURL(), nil
}

// S3Store 上传到 S3 兼容对象存储
type S3Store struct {
	api       s3iface.S3API
	bucket    string
	prefix    string
	publicURL string
}

// NewS3Store 根据配置创建 S3 存储（兼容 B2 / MinIO，使用 path-style）
func NewS3Store(cfg *config.S3Config) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.KeyID, cfg.AppKey, ""),
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}
	return NewS3StoreWithAPI(s3.New(sess), cfg.Bucket, cfg.PublicURL), nil
}

// NewS3StoreWithAPI 使用已有的 S3 客户端
func NewS3StoreWithAPI(api s3iface.S3API, bucket, publicURL string) *S3Store {
	return &S3Store{
		api:       api,
		bucket:    bucket,
		prefix:    "announcements/",
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (s *S3Store) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	key := s.prefix + uuid.New().String() + extensionFor(mimeType)

	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(mimeType),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload announcement: %w", err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// LocalStore 写入共享目录（站点与客户端挂载同一路径）
type LocalStore struct {
	Dir string
}

func (l LocalStore) Put(_ context.Context, data []byte, mimeType string) (string, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create announcement dir: %w", err)
	}
	path := filepath.Join(l.Dir, uuid.New().String()+extensionFor(mimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write announcement: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
