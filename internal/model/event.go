package model

import (
	"time"

	"github.com/google/uuid"
)

// SaleCompletedEvent 結算提交後發送給通知服務
type SaleCompletedEvent struct {
	SaleID        uuid.UUID     `json:"sale_id"`
	OrderRef      string        `json:"order_ref"`
	CustomerID    *string       `json:"customer_id,omitempty"`
	SellerID      *string       `json:"seller_id,omitempty"`
	ShowtimeID    string        `json:"showtime_id"`
	SeatIDs       []string      `json:"seat_ids"`
	Total         int64         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	SettledAt     time.Time     `json:"settled_at"`
}

func NewSaleCompletedEvent(sale *Sale) *SaleCompletedEvent {
	return &SaleCompletedEvent{
		SaleID:        sale.ID,
		OrderRef:      sale.OrderRef,
		CustomerID:    sale.CustomerID,
		SellerID:      sale.SellerID,
		ShowtimeID:    sale.ShowtimeID,
		SeatIDs:       sale.SeatIDs(),
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		SettledAt:     sale.SettledAt,
	}
}
