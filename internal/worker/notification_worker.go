package worker

import (
	"context"
	"go-gin-seat-booking/internal/notification"
	"go-gin-seat-booking/internal/queue"
	"go-gin-seat-booking/pkg/logger"
	"sync"

	"go.uber.org/zap"
)

type NotificationWorker interface {
	// 訂閱結算完成事件並轉交通知服務
	Start(ctx context.Context) error
	// 等待處理中的事件結束
	Wait()
}

type NotificationWorkerImpl struct {
	notifier notification.Notifier
	queue    queue.SaleEventQueue
	wg       sync.WaitGroup
}

func NewNotificationWorker(notifier notification.Notifier, queue queue.SaleEventQueue) NotificationWorker {
	return &NotificationWorkerImpl{
		notifier: notifier,
		queue:    queue,
	}
}

func (w *NotificationWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.SubscribeSaleCompleted(ctx)
	if err != nil {
		return err
	}

	log := logger.WithComponent("worker")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for msg := range msgs {
			if err := w.notifier.Notify(ctx, msg.Data); err != nil {
				// 通知服務暫時失敗，重回隊列稍後重試
				log.Warn("notify failed, requeue", zap.String("order_ref", msg.Data.OrderRef), zap.Error(err))
				msg.Nack(true)
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

func (w *NotificationWorkerImpl) Wait() {
	w.wg.Wait()
}
