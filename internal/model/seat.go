package model

import "time"

// SeatStatus 場次座位狀態
type SeatStatus string

const (
	SeatStatusOpen     SeatStatus = "open"
	SeatStatusSold     SeatStatus = "sold"
	SeatStatusDisabled SeatStatus = "disabled"
)

// IsValid 驗證狀態是否有效
func (s SeatStatus) IsValid() bool {
	switch s {
	case SeatStatusOpen, SeatStatusSold, SeatStatusDisabled:
		return true
	}
	return false
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s SeatStatus) CanTransitionTo(target SeatStatus) bool {
	transitions := map[SeatStatus][]SeatStatus{
		SeatStatusOpen:     {SeatStatusSold, SeatStatusDisabled},
		SeatStatusDisabled: {SeatStatusOpen},
		SeatStatusSold:     {}, // 售出後不可再變更
	}

	for _, status := range transitions[s] {
		if status == target {
			return true
		}
	}
	return false
}

// SeatShowtime 某場次的單一座位，價格以此為準
type SeatShowtime struct {
	ShowtimeID string     `json:"showtime_id" db:"showtime_id"`
	SeatID     string     `json:"seat_id" db:"seat_id"`
	Status     SeatStatus `json:"status" db:"status"`
	Price      int64      `json:"price" db:"price"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// HoldResult 座位保留操作結果
type HoldResult string

const (
	HoldGranted   HoldResult = "granted"
	HoldDenied    HoldResult = "denied"
	HoldRefreshed HoldResult = "refreshed"
	HoldReleased  HoldResult = "released"
	HoldNotOwner  HoldResult = "not_owner"
	HoldNotFound  HoldResult = "not_found"
)

// AcquireHoldsRequest 一次保留多個座位
type AcquireHoldsRequest struct {
	SeatIDs    []string `json:"seat_ids" binding:"required,min=1,dive,required"`
	TTLSeconds int      `json:"ttl_seconds" binding:"omitempty,min=1,max=3600"`
}

// HoldsResponse 保留成功回應
type HoldsResponse struct {
	ShowtimeID string    `json:"showtime_id"`
	SeatIDs    []string  `json:"seat_ids"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// HoldStatusResponse 查詢單一座位保留狀態
type HoldStatusResponse struct {
	ShowtimeID string `json:"showtime_id"`
	SeatID     string `json:"seat_id"`
	Held       bool   `json:"held"`
	Mine       bool   `json:"mine"`
}
