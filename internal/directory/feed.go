package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "github.com/ertugrulornek7-byte/zilseker/common/redis"
	"github.com/ertugrulornek7-byte/zilseker/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Feed 目录变更流消费者；每个站点使用独立的消费者组，因此每个站点都能收到全部变更
type Feed struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	batch    int64
	block    time.Duration
	logger   *zap.Logger
}

// NewFeed 创建变更流消费者
func NewFeed(client *redis.Client, stream, stationID string, logger *zap.Logger) *Feed {
	return &Feed{
		client:   client,
		stream:   stream,
		group:    "station:" + stationID,
		consumer: stationID,
		batch:    50,
		block:    5 * time.Second,
		logger:   logger,
	}
}

// Prepare 创建消费者组；必须在加载目录快照之前调用，保证快照之后的变更不会丢失
func (f *Feed) Prepare(ctx context.Context) error {
	return rediscommon.CreateConsumerGroup(ctx, f.client, f.stream, f.group, "$")
}

// Run 持续消费直到 ctx 取消
func (f *Feed) Run(ctx context.Context, out chan<- models.CollectionChange) error {
	if err := f.Prepare(ctx); err != nil {
		return err
	}

	f.logger.Info("Directory feed started",
		zap.String("stream", f.stream),
		zap.String("consumer_group", f.group),
	)

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := f.consume(ctx, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Error("Failed to consume directory changes",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			// 消费者组可能随 stream 一起被删除
			if err := f.Prepare(ctx); err != nil {
				f.logger.Warn("Failed to recreate consumer group", zap.Error(err))
			}
			continue
		}
		backoff = time.Second
	}
}

func (f *Feed) consume(ctx context.Context, out chan<- models.CollectionChange) error {
	messages, err := rediscommon.ReadFromStream(ctx, f.client, f.stream, f.group, f.consumer, f.batch, f.block)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		change, err := decodeChange(msg)
		if err != nil {
			f.logger.Warn("Dropping malformed directory change",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		} else {
			select {
			case out <- change:
			case <-ctx.Done():
				return nil
			}
		}

		if err := rediscommon.Ack(ctx, f.client, f.stream, f.group, msg.ID); err != nil {
			f.logger.Warn("Failed to ack directory change",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func decodeChange(msg rediscommon.StreamMessage) (models.CollectionChange, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return models.CollectionChange{}, fmt.Errorf("missing data field in message")
	}
	var change models.CollectionChange
	if err := json.Unmarshal([]byte(raw), &change); err != nil {
		return models.CollectionChange{}, fmt.Errorf("failed to unmarshal change: %w", err)
	}
	return change, nil
}
