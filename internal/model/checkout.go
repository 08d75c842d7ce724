package model

import (
	"fmt"
	"time"
)

// ItemKind 加購品項類別
type ItemKind string

const (
	ItemKindCombo   ItemKind = "combo"
	ItemKindProduct ItemKind = "product"
)

func (k ItemKind) IsValid() bool {
	return k == ItemKindCombo || k == ItemKindProduct
}

type SessionSeat struct {
	SeatID string `json:"seat_id" binding:"required"`
	Price  int64  `json:"price" binding:"min=0"`
}

type SessionItem struct {
	ItemID    string   `json:"item_id" binding:"required"`
	Quantity  int      `json:"quantity" binding:"required,min=1"`
	UnitPrice int64    `json:"unit_price" binding:"min=0"`
	Kind      ItemKind `json:"kind" binding:"required,oneof=combo product"`
}

// CheckoutSession 待付款訂單，建立後除刪除外不可修改
type CheckoutSession struct {
	OrderRef    string        `json:"order_ref"`
	ActorID     string        `json:"actor_id"`
	ShowtimeID  string        `json:"showtime_id"`
	Seats       []SessionSeat `json:"seats"`
	Items       []SessionItem `json:"items,omitempty"`
	DiscountRef *string       `json:"discount_ref,omitempty"`
	Total       int64         `json:"total"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SeatIDs 依原順序回傳座位編號
func (s *CheckoutSession) SeatIDs() []string {
	ids := make([]string, 0, len(s.Seats))
	for _, seat := range s.Seats {
		ids = append(ids, seat.SeatID)
	}
	return ids
}

func (s *CheckoutSession) Validate() error {
	if s.OrderRef == "" || s.ActorID == "" || s.ShowtimeID == "" {
		return fmt.Errorf("order_ref, actor_id and showtime_id are required")
	}
	return ValidateLines(s.Seats, s.Items, s.Total)
}

// ValidateLines 檢查座位與加購明細
func ValidateLines(seats []SessionSeat, items []SessionItem, total int64) error {
	if len(seats) == 0 {
		return fmt.Errorf("at least one seat is required")
	}
	seen := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		if seat.SeatID == "" {
			return fmt.Errorf("seat id is required")
		}
		if _, ok := seen[seat.SeatID]; ok {
			return fmt.Errorf("duplicate seat %s", seat.SeatID)
		}
		seen[seat.SeatID] = struct{}{}
		if seat.Price < 0 {
			return fmt.Errorf("seat %s has negative price", seat.SeatID)
		}
	}
	for _, item := range items {
		if item.ItemID == "" {
			return fmt.Errorf("item id is required")
		}
		if !item.Kind.IsValid() {
			return fmt.Errorf("item %s has unknown kind %q", item.ItemID, item.Kind)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item %s has non-positive quantity", item.ItemID)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %s has negative price", item.ItemID)
		}
	}
	if total < 0 {
		return fmt.Errorf("total must not be negative")
	}
	return nil
}

// BeginCheckoutRequest 進入付款流程
type BeginCheckoutRequest struct {
	ShowtimeID  string        `json:"showtime_id" binding:"required"`
	Seats       []SessionSeat `json:"seats" binding:"required,min=1,dive"`
	Items       []SessionItem `json:"items" binding:"omitempty,dive"`
	DiscountRef *string       `json:"discount_ref"`
	Total       int64         `json:"total" binding:"min=0"`
	ReturnURL   string        `json:"return_url" binding:"omitempty,url"`
	ActorID     string        `json:"-"`
}

// CheckoutResponse 付款導向資訊
type CheckoutResponse struct {
	OrderRef   string    `json:"order_ref"`
	PaymentURL string    `json:"payment_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}
