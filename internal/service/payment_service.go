package service

import (
	"context"
	"fmt"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/payment"
	apperrors "go-gin-seat-booking/pkg/app_errors"
)

type PaymentService interface {
	// 依回呼結果導向結算或失敗處理
	HandleCallback(ctx context.Context, cb *model.PaymentCallback) (*model.SettlementResult, error)
}

type PaymentServiceImpl struct {
	settlement SettlementService
	expiry     ExpiryService
}

func NewPaymentService(settlement SettlementService, expiry ExpiryService) PaymentService {
	return &PaymentServiceImpl{
		settlement: settlement,
		expiry:     expiry,
	}
}

func (s *PaymentServiceImpl) HandleCallback(ctx context.Context, cb *model.PaymentCallback) (*model.SettlementResult, error) {
	if cb == nil || cb.OrderRef == "" {
		return nil, fmt.Errorf("%w: order_ref is required", apperrors.ErrInvalidInput)
	}
	if cb.Success && cb.Code == payment.SuccessCode {
		return s.settlement.SettleOnline(ctx, cb)
	}
	return s.expiry.Fail(ctx, cb.OrderRef)
}
