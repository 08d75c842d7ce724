package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/pkg/logger"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type KafkaSaleQueueConfig struct {
	Brokers  []string
	Topic    string
	Group    string
	ClientID string
}

type KafkaSaleQueueImpl struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSaleQueue 以 order ref 作為 key，同一訂單的事件落在同一 partition
func NewKafkaSaleQueue(cfg KafkaSaleQueueConfig) (SaleEventQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "seat-booking"
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.Group != "" {
		opts = append(opts,
			kgo.ConsumerGroup(cfg.Group),
			kgo.ConsumeTopics(cfg.Topic),
			kgo.AutoCommitMarks(),
		)
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSaleQueueImpl{client: client, topic: cfg.Topic}, nil
}

func (q *KafkaSaleQueueImpl) PublishSaleCompleted(ctx context.Context, event *model.SaleCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}
	record := &kgo.Record{Topic: q.topic, Key: []byte(event.OrderRef), Value: body}
	if err := q.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce sale event: %w", err)
	}
	return nil
}

// SubscribeSaleCompleted Ack 時標記 offset，由 AutoCommitMarks 定期提交；
// Nack 不標記，重啟或 rebalance 後會從上次提交處重新消費
func (q *KafkaSaleQueueImpl) SubscribeSaleCompleted(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			fetches := q.client.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return
			}
			for _, fe := range fetches.Errors() {
				logger.WithComponent("mq").Error("kafka fetch error",
					zap.String("topic", fe.Topic), zap.Int32("partition", fe.Partition), zap.Error(fe.Err))
			}

			iter := fetches.RecordIter()
			for !iter.Done() {
				record := iter.Next()
				var event model.SaleCompletedEvent
				if err := json.Unmarshal(record.Value, &event); err != nil {
					logger.WithComponent("mq").Warn("unmarshal sale event failed",
						zap.Int64("offset", record.Offset), zap.Error(err))
					q.client.MarkCommitRecords(record)
					continue
				}
				d := Delivery{
					Data: &event,
					Ack:  func() { q.client.MarkCommitRecords(record) },
					Nack: func(requeue bool) {
						if !requeue {
							q.client.MarkCommitRecords(record)
							return
						}
						logger.WithComponent("mq").Warn("kafka record nack(requeue), offset not committed",
							zap.String("order_ref", event.OrderRef), zap.Int64("offset", record.Offset))
					},
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

func (q *KafkaSaleQueueImpl) Close() error {
	if err := q.client.CommitMarkedOffsets(context.Background()); err != nil {
		logger.WithComponent("mq").Warn("commit marked offsets failed", zap.Error(err))
	}
	q.client.Close()
	return nil
}
