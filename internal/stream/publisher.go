package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-care/internal/domain"
)

// FallEventStream 跌倒事件流名称
// 下游消费者（看板聚合/报警分析）从此流读取
const FallEventStream = "care:fall_events"

// Publisher 跌倒事件 Redis Streams 发布器
// 发布失败只记录日志，不影响跌倒事件生命周期
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher 创建发布器；client 为 nil 时发布为 no-op
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// PublishFallEvent 发布跌倒事件到 Redis Streams（XADD）
func (p *Publisher) PublishFallEvent(ctx context.Context, event *domain.FallEvent) error {
	if p.client == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal fall event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: FallEventStream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish fall event: %w", err)
	}

	p.logger.Debug("Fall event published",
		zap.String("stream", FallEventStream),
		zap.String("message_id", id),
		zap.String("event_id", event.EventID),
	)
	return nil
}
