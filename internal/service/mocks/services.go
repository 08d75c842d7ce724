package mocks

import (
	"context"
	"go-gin-seat-booking/internal/model"
	"time"

	"github.com/stretchr/testify/mock"
)

type HoldServiceMock struct {
	mock.Mock
}

func NewHoldServiceMock() *HoldServiceMock {
	return &HoldServiceMock{}
}

func (m *HoldServiceMock) Acquire(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (model.HoldResult, error) {
	args := m.Called(ctx, showtimeID, seatID, actorID, ttl)
	return args.Get(0).(model.HoldResult), args.Error(1)
}

func (m *HoldServiceMock) AcquireSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string, ttl time.Duration) (*model.HoldsResponse, error) {
	args := m.Called(ctx, showtimeID, seatIDs, actorID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HoldsResponse), args.Error(1)
}

func (m *HoldServiceMock) Refresh(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (model.HoldResult, error) {
	args := m.Called(ctx, showtimeID, seatID, actorID, ttl)
	return args.Get(0).(model.HoldResult), args.Error(1)
}

func (m *HoldServiceMock) RefreshSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string, ttl time.Duration) error {
	args := m.Called(ctx, showtimeID, seatIDs, actorID, ttl)
	return args.Error(0)
}

func (m *HoldServiceMock) Release(ctx context.Context, showtimeID, seatID, actorID string) (model.HoldResult, error) {
	args := m.Called(ctx, showtimeID, seatID, actorID)
	return args.Get(0).(model.HoldResult), args.Error(1)
}

func (m *HoldServiceMock) ReleaseSeats(ctx context.Context, showtimeID string, seatIDs []string, actorID string) int {
	args := m.Called(ctx, showtimeID, seatIDs, actorID)
	return args.Int(0)
}

func (m *HoldServiceMock) Purge(ctx context.Context, showtimeID string, seatIDs []string) error {
	args := m.Called(ctx, showtimeID, seatIDs)
	return args.Error(0)
}

func (m *HoldServiceMock) Holder(ctx context.Context, showtimeID, seatID string) (string, error) {
	args := m.Called(ctx, showtimeID, seatID)
	return args.String(0), args.Error(1)
}

type CheckoutServiceMock struct {
	mock.Mock
}

func NewCheckoutServiceMock() *CheckoutServiceMock {
	return &CheckoutServiceMock{}
}

func (m *CheckoutServiceMock) Create(ctx context.Context, session *model.CheckoutSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *CheckoutServiceMock) Get(ctx context.Context, orderRef string) (*model.CheckoutSession, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutSession), args.Error(1)
}

func (m *CheckoutServiceMock) Delete(ctx context.Context, orderRef string) error {
	args := m.Called(ctx, orderRef)
	return args.Error(0)
}

func (m *CheckoutServiceMock) Find(ctx context.Context, orderRef, actorID string) (*model.CheckoutSession, error) {
	args := m.Called(ctx, orderRef, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutSession), args.Error(1)
}

func (m *CheckoutServiceMock) Begin(ctx context.Context, req model.BeginCheckoutRequest) (*model.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CheckoutResponse), args.Error(1)
}

type SettlementServiceMock struct {
	mock.Mock
}

func NewSettlementServiceMock() *SettlementServiceMock {
	return &SettlementServiceMock{}
}

func (m *SettlementServiceMock) SettleOnline(ctx context.Context, cb *model.PaymentCallback) (*model.SettlementResult, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementResult), args.Error(1)
}

func (m *SettlementServiceMock) SettleCash(ctx context.Context, req model.CounterSaleRequest, staffID string) (*model.SettlementResult, error) {
	args := m.Called(ctx, req, staffID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementResult), args.Error(1)
}

type ExpiryServiceMock struct {
	mock.Mock
}

func NewExpiryServiceMock() *ExpiryServiceMock {
	return &ExpiryServiceMock{}
}

func (m *ExpiryServiceMock) Fail(ctx context.Context, orderRef string) (*model.SettlementResult, error) {
	args := m.Called(ctx, orderRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementResult), args.Error(1)
}

func (m *ExpiryServiceMock) Cancel(ctx context.Context, orderRef, actorID string, isStaff bool) (*model.SettlementResult, error) {
	args := m.Called(ctx, orderRef, actorID, isStaff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementResult), args.Error(1)
}

type PaymentServiceMock struct {
	mock.Mock
}

func NewPaymentServiceMock() *PaymentServiceMock {
	return &PaymentServiceMock{}
}

func (m *PaymentServiceMock) HandleCallback(ctx context.Context, cb *model.PaymentCallback) (*model.SettlementResult, error) {
	args := m.Called(ctx, cb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SettlementResult), args.Error(1)
}
