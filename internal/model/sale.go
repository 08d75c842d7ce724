package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod 付款方式
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCash   PaymentMethod = "cash"
)

// Sale 結算完成的銷售紀錄，只寫入一次
type Sale struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	OrderRef      string        `json:"order_ref" db:"order_ref"`
	CustomerID    *string       `json:"customer_id,omitempty" db:"customer_id"`
	SellerID      *string       `json:"seller_id,omitempty" db:"seller_id"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentRef    *string       `json:"payment_ref,omitempty" db:"payment_ref"`
	ShowtimeID    string        `json:"showtime_id" db:"showtime_id"`
	Total         int64         `json:"total" db:"total"`
	DiscountRef   *string       `json:"discount_ref,omitempty" db:"discount_ref"`
	SettledAt     time.Time     `json:"settled_at" db:"settled_at"`
	Seats         []SaleSeat    `json:"seats"`
	Items         []SaleItem    `json:"items,omitempty"`
}

type SaleSeat struct {
	SaleID     uuid.UUID  `json:"-" db:"sale_id"`
	ShowtimeID string     `json:"showtime_id" db:"showtime_id"`
	SeatID     string     `json:"seat_id" db:"seat_id"`
	Price      int64      `json:"price" db:"price"`
	Status     SeatStatus `json:"status" db:"status"`
}

type SaleItem struct {
	SaleID    uuid.UUID `json:"-" db:"sale_id"`
	ItemID    string    `json:"item_id" db:"item_id"`
	Kind      ItemKind  `json:"kind" db:"kind"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice int64     `json:"unit_price" db:"unit_price"`
	LineTotal int64     `json:"line_total" db:"line_total"`
}

// SeatIDs 依原順序回傳座位編號
func (s *Sale) SeatIDs() []string {
	ids := make([]string, 0, len(s.Seats))
	for _, seat := range s.Seats {
		ids = append(ids, seat.SeatID)
	}
	return ids
}

// MergeItems 合併相同品項，套餐在前、單品在後，各自保持首次出現順序
func MergeItems(items []SessionItem) []SaleItem {
	type key struct {
		kind ItemKind
		id   string
	}
	index := make(map[key]int)
	var combos, products []SaleItem
	for _, item := range items {
		k := key{item.Kind, item.ItemID}
		bucket := &products
		if item.Kind == ItemKindCombo {
			bucket = &combos
		}
		if i, ok := index[k]; ok {
			line := &(*bucket)[i]
			line.Quantity += item.Quantity
			line.LineTotal = int64(line.Quantity) * line.UnitPrice
			continue
		}
		index[k] = len(*bucket)
		*bucket = append(*bucket, SaleItem{
			ItemID:    item.ItemID,
			Kind:      item.Kind,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: int64(item.Quantity) * item.UnitPrice,
		})
	}
	return append(combos, products...)
}

// CounterSaleRequest 櫃台現金銷售
type CounterSaleRequest struct {
	ShowtimeID  string        `json:"showtime_id" binding:"required"`
	Seats       []SessionSeat `json:"seats" binding:"required,min=1,dive"`
	Items       []SessionItem `json:"items" binding:"omitempty,dive"`
	DiscountRef *string       `json:"discount_ref"`
	Total       int64         `json:"total" binding:"min=0"`
	CustomerID  *string       `json:"customer_id"`
}

// SettlementOutcome 結算結果
type SettlementOutcome string

const (
	OutcomeSettled        SettlementOutcome = "settled"
	OutcomeAlreadySettled SettlementOutcome = "already_settled"
	OutcomeExpired        SettlementOutcome = "expired"
	OutcomeConflict       SettlementOutcome = "conflict"
	OutcomeFailed         SettlementOutcome = "failed"
	OutcomeCancelled      SettlementOutcome = "cancelled"
	OutcomeAlreadyClosed  SettlementOutcome = "already_closed"
)

type SettlementResult struct {
	Outcome   SettlementOutcome `json:"outcome"`
	OrderRef  string            `json:"order_ref"`
	Sale      *Sale             `json:"sale,omitempty"`
	LostSeats []string          `json:"lost_seats,omitempty"`
}
