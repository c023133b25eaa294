package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ertugrulornek7-byte/zilseker/common/database"
	"github.com/ertugrulornek7-byte/zilseker/internal/announce"
	"github.com/ertugrulornek7-byte/zilseker/internal/config"
	"github.com/ertugrulornek7-byte/zilseker/internal/directory"

	"go.uber.org/zap"
)

// buildRepository 根据 DIRECTORY_BACKEND 创建目录存储；memory 时返回的 db 为空
func buildRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (directory.Repository, *sql.DB, error) {
	switch cfg.Directory.Backend {
	case "memory":
		logger.Warn("Using in-memory directory, changes are not persisted")
		return directory.NewMemoryRepository(), nil, nil
	case "postgres", "":
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		repo := directory.NewPostgresRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
	}
}

// buildBlobStore 根据 ANNOUNCE_STORAGE 选择公告音频存放方式
func buildBlobStore(cfg *config.Config) (announce.BlobStore, error) {
	switch cfg.Announce.Storage {
	case "inline", "":
		return announce.InlineStore{}, nil
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for s3 announcement storage")
		}
		return announce.NewS3Store(&cfg.S3)
	case "local":
		if cfg.Announce.LocalDir == "" {
			return nil, fmt.Errorf("ANNOUNCE_LOCAL_DIR is required for local announcement storage")
		}
		return announce.LocalStore{Dir: cfg.Announce.LocalDir}, nil
	default:
		return nil, fmt.Errorf("unknown announcement storage %q", cfg.Announce.Storage)
	}
}
