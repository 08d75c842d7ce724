package service

import (
	"context"
	"errors"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"go-gin-seat-booking/pkg/logger"

	"go.uber.org/zap"
)

type ExpiryService interface {
	// 付款失敗：釋放座位並刪除 session，session 不存在時為 already_closed
	Fail(ctx context.Context, orderRef string) (*model.SettlementResult, error)
	// 取消待付款訂單，非 staff 只能取消自己的訂單
	Cancel(ctx context.Context, orderRef, actorID string, isStaff bool) (*model.SettlementResult, error)
}

type ExpiryServiceImpl struct {
	checkouts CheckoutService
	holds     HoldService
}

func NewExpiryService(checkouts CheckoutService, holds HoldService) ExpiryService {
	return &ExpiryServiceImpl{
		checkouts: checkouts,
		holds:     holds,
	}
}

func (s *ExpiryServiceImpl) Fail(ctx context.Context, orderRef string) (*model.SettlementResult, error) {
	session, err := s.checkouts.Get(ctx, orderRef)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return &model.SettlementResult{Outcome: model.OutcomeAlreadyClosed, OrderRef: orderRef}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.close(ctx, session); err != nil {
		return nil, err
	}
	return &model.SettlementResult{Outcome: model.OutcomeFailed, OrderRef: orderRef}, nil
}

func (s *ExpiryServiceImpl) Cancel(ctx context.Context, orderRef, actorID string, isStaff bool) (*model.SettlementResult, error) {
	session, err := s.checkouts.Get(ctx, orderRef)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return &model.SettlementResult{Outcome: model.OutcomeAlreadyClosed, OrderRef: orderRef}, nil
	}
	if err != nil {
		return nil, err
	}
	if !isStaff && session.ActorID != actorID {
		return nil, apperrors.ErrNotOwner
	}
	if err := s.close(ctx, session); err != nil {
		return nil, err
	}
	return &model.SettlementResult{Outcome: model.OutcomeCancelled, OrderRef: orderRef}, nil
}

func (s *ExpiryServiceImpl) close(ctx context.Context, session *model.CheckoutSession) error {
	released := s.holds.ReleaseSeats(ctx, session.ShowtimeID, session.SeatIDs(), session.ActorID)
	if err := s.checkouts.Delete(ctx, session.OrderRef); err != nil {
		return err
	}
	logger.WithComponent("expiry").Info("checkout closed",
		zap.String("order_ref", session.OrderRef),
		zap.String("showtime_id", session.ShowtimeID),
		zap.Int("released", released),
	)
	return nil
}
