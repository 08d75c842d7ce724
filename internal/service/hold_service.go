package service

import (
	"context"
	"fmt"
	"go-gin-seat-booking/internal/cache"
	"go-gin-seat-booking/internal/clock"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"go-gin-seat-booking/pkg/logger"
	"time"

	"go.uber.org/zap"
)

type HoldService interface {
	// 保留單一座位 (先寫先贏)
	Acquire(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (model.HoldResult, error)
	// 一次保留多個座位，任一失敗則釋放本次取得的座位並回傳 HoldConflictError
	AcquireSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string, ttl time.Duration) (*model.HoldsResponse, error)
	Refresh(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (model.HoldResult, error)
	// 延長多個座位，任一不屬於 actor 時回傳 HoldConflictError
	RefreshSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string, ttl time.Duration) error
	Release(ctx context.Context, showtimeID, seatID, actorID string) (model.HoldResult, error)
	// 盡力釋放 actor 持有的座位，回傳實際釋放數量
	ReleaseSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string) int
	// 不檢查持有者直接清除，僅在座位售出後使用
	Purge(ctx context.Context, showtimeID string, seatIDs []string) error
	Holder(ctx context.Context, showtimeID, seatID string) (string, error)
}

type HoldServiceImpl struct {
	store      cache.SeatHoldStore
	clock      clock.Clock
	defaultTTL time.Duration
}

func NewHoldService(store cache.SeatHoldStore, clk clock.Clock, defaultTTL time.Duration) HoldService {
	return &HoldServiceImpl{
		store:      store,
		clock:      clk,
		defaultTTL: defaultTTL,
	}
}

func (s *HoldServiceImpl) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}

func validateHoldKey(showtimeID, seatID, actorID string) error {
	if showtimeID == "" || seatID == "" || actorID == "" {
		return fmt.Errorf("%w: showtime, seat and actor are required", apperrors.ErrInvalidInput)
	}
	return nil
}

func (s *HoldServiceImpl) Acquire(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (model.HoldResult, error) {
	if err := validateHoldKey(showtimeID, seatID, actorID); err != nil {
		return model.HoldDenied, err
	}
	outcome, err := s.store.Acquire(ctx, showtimeID, seatID, actorID, s.ttl(ttl))
	if err != nil {
		return model.HoldDenied, err
	}
	if outcome == cache.HoldOutcomeOK || outcome == cache.HoldOutcomeAlreadyHeld {
		return model.HoldGranted, nil
	}
	return model.HoldDenied, nil
}

func (s *HoldServiceImpl) AcquireSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string, ttl time.Duration) (*model.HoldsResponse, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one seat is required", apperrors.ErrInvalidInput)
	}
	ttl = s.ttl(ttl)

	var (
		acquired []string
		denied   []string
	)
	for _, seatID := range seatIDs {
		if err := validateHoldKey(showtimeID, seatID, actorID); err != nil {
			s.rollbackAcquired(ctx, showtimeID, acquired, actorID)
			return nil, err
		}
		outcome, err := s.store.Acquire(ctx, showtimeID, seatID, actorID, ttl)
		if err != nil {
			s.rollbackAcquired(ctx, showtimeID, acquired, actorID)
			return nil, err
		}
		switch outcome {
		case cache.HoldOutcomeOK:
			acquired = append(acquired, seatID)
		case cache.HoldOutcomeAlreadyHeld:
			// 先前已持有，失敗時不釋放
		default:
			denied = append(denied, seatID)
		}
	}

	if len(denied) > 0 {
		s.rollbackAcquired(ctx, showtimeID, acquired, actorID)
		return nil, &apperrors.HoldConflictError{ShowtimeID: showtimeID, Seats: denied}
	}

	return &model.HoldsResponse{
		ShowtimeID: showtimeID,
		SeatIDs:    seatIDs,
		ExpiresAt:  s.clock.Now().Add(ttl),
	}, nil
}

func (s *HoldServiceImpl) rollbackAcquired(ctx context.Context, showtimeID string, seatIDs []string, actorID string) {
	if len(seatIDs) == 0 {
		return
	}
	s.ReleaseSeats(context.WithoutCancel(ctx), showtimeID, seatIDs, actorID)
}

func (s *HoldServiceImpl) Refresh(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (model.HoldResult, error) {
	if err := validateHoldKey(showtimeID, seatID, actorID); err != nil {
		return model.HoldNotFound, err
	}
	outcome, err := s.store.Refresh(ctx, showtimeID, seatID, actorID, s.ttl(ttl))
	if err != nil {
		return model.HoldNotFound, err
	}
	return toHoldResult(outcome, model.HoldRefreshed), nil
}

func (s *HoldServiceImpl) RefreshSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string, ttl time.Duration) error {
	var lost []string
	for _, seatID := range seatIDs {
		result, err := s.Refresh(ctx, showtimeID, seatID, actorID, ttl)
		if err != nil {
			return err
		}
		if result != model.HoldRefreshed {
			lost = append(lost, seatID)
		}
	}
	if len(lost) > 0 {
		return &apperrors.HoldConflictError{ShowtimeID: showtimeID, Seats: lost}
	}
	return nil
}

func (s *HoldServiceImpl) Release(ctx context.Context, showtimeID, seatID, actorID string) (model.HoldResult, error) {
	if err := validateHoldKey(showtimeID, seatID, actorID); err != nil {
		return model.HoldNotFound, err
	}
	outcome, err := s.store.Release(ctx, showtimeID, seatID, actorID)
	if err != nil {
		return model.HoldNotFound, err
	}
	return toHoldResult(outcome, model.HoldReleased), nil
}

func (s *HoldServiceImpl) ReleaseSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string) int {
	log := logger.WithComponent("hold")
	released := 0
	for _, seatID := range seatIDs {
		result, err := s.Release(ctx, showtimeID, seatID, actorID)
		if err != nil {
			log.Warn("release hold failed",
				zap.String("showtime_id", showtimeID),
				zap.String("seat_id", seatID),
				zap.Error(err),
			)
			continue
		}
		if result == model.HoldReleased {
			released++
		}
	}
	return released
}

func (s *HoldServiceImpl) Purge(ctx context.Context, showtimeID string, seatIDs []string) error {
	return s.store.Delete(ctx, showtimeID, seatIDs...)
}

func (s *HoldServiceImpl) Holder(ctx context.Context, showtimeID, seatID string) (string, error) {
	if showtimeID == "" || seatID == "" {
		return "", fmt.Errorf("%w: showtime and seat are required", apperrors.ErrInvalidInput)
	}
	return s.store.Holder(ctx, showtimeID, seatID)
}

func toHoldResult(outcome cache.HoldOutcome, ok model.HoldResult) model.HoldResult {
	switch outcome {
	case cache.HoldOutcomeOK:
		return ok
	case cache.HoldOutcomeNotOwner:
		return model.HoldNotOwner
	default:
		return model.HoldNotFound
	}
}
