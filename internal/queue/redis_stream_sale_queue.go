package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/pkg/logger"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey         = "sales:stream"
	ConsumerGroupName = "sale-notifiers"
)

type RedisStreamSaleQueueConfig struct {
	ClaimMinIdleTime time.Duration // nack(requeue) 後多久重新領回
	BlockTime        time.Duration
	MaxLen           int64
}

type RedisStreamSaleQueueImpl struct {
	client   *redis.Client
	consumer string
	cfg      RedisStreamSaleQueueConfig
}

// NewRedisStreamSaleQueue 建立 consumer group (已存在則沿用)；config 可為 nil
func NewRedisStreamSaleQueue(client *redis.Client, consumerID string, config *RedisStreamSaleQueueConfig) (SaleEventQueue, error) {
	cfg := RedisStreamSaleQueueConfig{
		ClaimMinIdleTime: 30 * time.Second,
		BlockTime:        2 * time.Second,
		MaxLen:           100000,
	}
	if config != nil {
		if config.ClaimMinIdleTime > 0 {
			cfg.ClaimMinIdleTime = config.ClaimMinIdleTime
		}
		if config.BlockTime > 0 {
			cfg.BlockTime = config.BlockTime
		}
		if config.MaxLen > 0 {
			cfg.MaxLen = config.MaxLen
		}
	}
	if consumerID == "" {
		consumerID = uuid.NewString()
	}

	err := client.XGroupCreateMkStream(context.Background(), StreamKey, ConsumerGroupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &RedisStreamSaleQueueImpl{client: client, consumer: "notifier:" + consumerID, cfg: cfg}, nil
}

func (q *RedisStreamSaleQueueImpl) PublishSaleCompleted(ctx context.Context, event *model.SaleCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: q.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{"order_ref": event.OrderRef, "event": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd sale event: %w", err)
	}
	return nil
}

// SubscribeSaleCompleted 讀取新事件，並定期領回閒置過久的 pending 事件重送
func (q *RedisStreamSaleQueueImpl) SubscribeSaleCompleted(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		lastClaim := time.Now()
		for ctx.Err() == nil {
			var msgs []redis.XMessage
			if time.Since(lastClaim) >= q.cfg.ClaimMinIdleTime {
				msgs = q.claimStale(ctx)
				lastClaim = time.Now()
			}
			msgs = append(msgs, q.readNew(ctx)...)

			for _, msg := range msgs {
				d, ok := q.toDelivery(ctx, msg)
				if !ok {
					continue
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *RedisStreamSaleQueueImpl) readNew(ctx context.Context) []redis.XMessage {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroupName,
		Consumer: q.consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    10,
		Block:    q.cfg.BlockTime,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.WithComponent("mq").Error("read sale stream failed", zap.Error(err))
			time.Sleep(time.Second)
		}
		return nil
	}
	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs
}

func (q *RedisStreamSaleQueueImpl) claimStale(ctx context.Context) []redis.XMessage {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroupName,
		Consumer: q.consumer,
		MinIdle:  q.cfg.ClaimMinIdleTime,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.WithComponent("mq").Warn("claim stale sale events failed", zap.Error(err))
		return nil
	}
	return msgs
}

// toDelivery 無法解析的事件直接 ack 丟棄
func (q *RedisStreamSaleQueueImpl) toDelivery(ctx context.Context, msg redis.XMessage) (Delivery, bool) {
	ack := func() {
		if err := q.client.XAck(context.WithoutCancel(ctx), StreamKey, ConsumerGroupName, msg.ID).Err(); err != nil {
			logger.WithComponent("mq").Error("ack sale event failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}

	raw, _ := msg.Values["event"].(string)
	var event model.SaleCompletedEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		logger.WithComponent("mq").Warn("drop malformed sale event", zap.String("message_id", msg.ID), zap.Error(err))
		ack()
		return Delivery{}, false
	}

	return Delivery{
		Data: &event,
		Ack:  ack,
		Nack: func(requeue bool) {
			// requeue 時留在 PEL，閒置超過 ClaimMinIdleTime 後重新領回
			if !requeue {
				ack()
			}
		},
	}, true
}

// Close 不關閉共用的 redis client
func (q *RedisStreamSaleQueueImpl) Close() error {
	return nil
}
