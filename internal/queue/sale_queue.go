package queue

import (
	"context"
	"go-gin-seat-booking/internal/model"
)

type Delivery struct {
	Data *model.SaleCompletedEvent
	Ack  func()
	Nack func(requeue bool)
}

type SaleEventQueue interface {
	// 發送結算完成事件
	PublishSaleCompleted(ctx context.Context, event *model.SaleCompletedEvent) error
	// 訂閱結算完成事件
	SubscribeSaleCompleted(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

type MemorySaleQueueImpl struct {
	// 使用 Go channel 來模擬 MQ 隊列
	ch chan *model.SaleCompletedEvent
}

func NewMemorySaleQueue(bufferSize int) SaleEventQueue {
	return &MemorySaleQueueImpl{
		ch: make(chan *model.SaleCompletedEvent, bufferSize),
	}
}

func (q *MemorySaleQueueImpl) PublishSaleCompleted(ctx context.Context, event *model.SaleCompletedEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemorySaleQueueImpl) SubscribeSaleCompleted(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-q.ch:
				d := Delivery{
					Data: event,
					Ack:  func() { /* 記憶體版不用做特別動作 */ },
					Nack: func(requeue bool) {
						if requeue {
							go func() { q.ch <- event }() // 簡單模擬重回隊列
						}
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

func (q *MemorySaleQueueImpl) Close() error {
	return nil
}
