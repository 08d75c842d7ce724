package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrHoldConflict          = errors.New("seat hold conflict")
	ErrHoldNotFound          = errors.New("seat hold not found")
	ErrNotOwner              = errors.New("actor does not own this resource")
	ErrSessionNotFound       = errors.New("checkout session not found")
	ErrOrderRefExists        = errors.New("order reference already exists")
	ErrSeatNoLongerAvailable = errors.New("seat no longer available")
	ErrPriceMismatch         = errors.New("price does not match catalog")
	ErrAlreadySettled        = errors.New("order already settled")
	ErrPaymentRefReused      = errors.New("payment reference already used by another order")
	ErrSaleNotFound          = errors.New("sale not found")
	ErrLoyaltyNotFound       = errors.New("loyalty profile not found")
	ErrStoreUnavailable      = errors.New("ephemeral store unavailable")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrPaymentGateway        = errors.New("payment gateway error")
	ErrInvalidSignature      = errors.New("invalid callback signature")
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrInternalServerError   = errors.New("internal server error")
)

// HoldConflictError 列出無法取得或已不屬於該 actor 的座位
type HoldConflictError struct {
	ShowtimeID string
	Seats      []string
}

func (e *HoldConflictError) Error() string {
	return fmt.Sprintf("seat hold conflict on showtime %s: %s", e.ShowtimeID, strings.Join(e.Seats, ","))
}

func (e *HoldConflictError) Unwrap() error {
	return ErrHoldConflict
}

// SeatConflictError 結算時已售出、停用或不存在的座位
type SeatConflictError struct {
	ShowtimeID string
	Seats      []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats no longer available on showtime %s: %s", e.ShowtimeID, strings.Join(e.Seats, ","))
}

func (e *SeatConflictError) Unwrap() error {
	return ErrSeatNoLongerAvailable
}
