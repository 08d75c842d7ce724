package notification

import (
	"context"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/pkg/logger"

	"go.uber.org/zap"
)

// Notifier 將結算完成事件轉交給票券與通知服務
type Notifier interface {
	Notify(ctx context.Context, event *model.SaleCompletedEvent) error
}

// LogNotifier 以結構化日誌記錄售票結果，供尚未串接外部通知服務時使用
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notification")}
}

func (n *LogNotifier) Notify(ctx context.Context, event *model.SaleCompletedEvent) error {
	fields := []zap.Field{
		zap.String("sale_id", event.SaleID.String()),
		zap.String("order_ref", event.OrderRef),
		zap.String("showtime_id", event.ShowtimeID),
		zap.Strings("seat_ids", event.SeatIDs),
		zap.Int64("total", event.Total),
		zap.String("payment_method", string(event.PaymentMethod)),
		zap.Time("settled_at", event.SettledAt),
	}
	if event.CustomerID != nil {
		fields = append(fields, zap.String("customer_id", *event.CustomerID))
	}
	if event.SellerID != nil {
		fields = append(fields, zap.String("seller_id", *event.SellerID))
	}
	n.log.Info("tickets issued", fields...)
	return nil
}
