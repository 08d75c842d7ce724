package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/pkg/logger"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitMQSaleQueueConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

type RabbitMQSaleQueueImpl struct {
	conn  *amqp.Connection
	pubCh *amqp.Channel
	mu    sync.Mutex // amqp channel 發送需序列化
	queue string
	cfg   RabbitMQSaleQueueConfig
}

// NewRabbitMQSaleQueue 連線後宣告 durable queue，訊息以 persistent 模式發送
func NewRabbitMQSaleQueue(cfg RabbitMQSaleQueueConfig) (SaleEventQueue, error) {
	if cfg.Queue == "" {
		cfg.Queue = "sale.completed"
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 50
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	return &RabbitMQSaleQueueImpl{conn: conn, pubCh: ch, queue: cfg.Queue, cfg: cfg}, nil
}

func (q *RabbitMQSaleQueueImpl) PublishSaleCompleted(ctx context.Context, event *model.SaleCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.pubCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.SaleID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish sale event: %w", err)
	}
	return nil
}

func (q *RabbitMQSaleQueueImpl) SubscribeSaleCompleted(ctx context.Context) (<-chan Delivery, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(q.cfg.Prefetch, 0, false); err != nil {
		logger.WithComponent("mq").Warn("set QoS failed", zap.Error(err))
	}
	msgs, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("queue consume: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.WithComponent("mq").Warn("rabbitmq deliveries channel closed")
					return
				}
				d := q.newDelivery(msg)
				if d == nil {
					continue
				}
				select {
				case out <- *d:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *RabbitMQSaleQueueImpl) newDelivery(msg amqp.Delivery) *Delivery {
	var event model.SaleCompletedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.WithComponent("mq").Warn("unmarshal sale event failed", zap.String("message_id", msg.MessageId), zap.Error(err))
		_ = msg.Nack(false, false) // 無法解析的訊息不重送
		return nil
	}
	return &Delivery{
		Data: &event,
		Ack: func() {
			if err := msg.Ack(false); err != nil {
				logger.WithComponent("mq").Error("rabbitmq ack failed", zap.String("message_id", msg.MessageId), zap.Error(err))
			}
		},
		Nack: func(requeue bool) {
			if err := msg.Nack(false, requeue); err != nil {
				logger.WithComponent("mq").Error("rabbitmq nack failed", zap.String("message_id", msg.MessageId), zap.Error(err))
			}
		},
	}
}

func (q *RabbitMQSaleQueueImpl) Close() error {
	_ = q.pubCh.Close()
	return q.conn.Close()
}
