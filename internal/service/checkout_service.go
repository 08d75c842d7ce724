package service

import (
	"context"
	"errors"
	"fmt"
	"go-gin-seat-booking/internal/cache"
	"go-gin-seat-booking/internal/clock"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/payment"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"go-gin-seat-booking/pkg/logger"
	"go-gin-seat-booking/pkg/telemetry"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Create(ctx context.Context, session *model.CheckoutSession) error
	Get(ctx context.Context, orderRef string) (*model.CheckoutSession, error)
	// 刪除不存在的 session 不視為錯誤
	Delete(ctx context.Context, orderRef string) error
	// 查詢 actor 自己的待付款訂單
	Find(ctx context.Context, orderRef, actorID string) (*model.CheckoutSession, error)
	// 延長座位保留、建立 session 並取得付款網址
	Begin(ctx context.Context, req model.BeginCheckoutRequest) (*model.CheckoutResponse, error)
}

type CheckoutServiceImpl struct {
	sessions   cache.CheckoutSessionStore
	holds      HoldService
	gateway    payment.Gateway
	clock      clock.Clock
	sessionTTL time.Duration
	returnURL  string
}

type CheckoutConfig struct {
	SessionTTL time.Duration
	ReturnURL  string
}

func NewCheckoutService(
	sessions cache.CheckoutSessionStore,
	holds HoldService,
	gateway payment.Gateway,
	clk clock.Clock,
	cfg CheckoutConfig,
) CheckoutService {
	return &CheckoutServiceImpl{
		sessions:   sessions,
		holds:      holds,
		gateway:    gateway,
		clock:      clk,
		sessionTTL: cfg.SessionTTL,
		returnURL:  cfg.ReturnURL,
	}
}

func (s *CheckoutServiceImpl) Create(ctx context.Context, session *model.CheckoutSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	return s.sessions.Create(ctx, session, s.sessionTTL)
}

func (s *CheckoutServiceImpl) Get(ctx context.Context, orderRef string) (*model.CheckoutSession, error) {
	if orderRef == "" {
		return nil, apperrors.ErrSessionNotFound
	}
	return s.sessions.Get(ctx, orderRef)
}

func (s *CheckoutServiceImpl) Delete(ctx context.Context, orderRef string) error {
	if orderRef == "" {
		return nil
	}
	return s.sessions.Delete(ctx, orderRef)
}

func (s *CheckoutServiceImpl) Find(ctx context.Context, orderRef, actorID string) (*model.CheckoutSession, error) {
	session, err := s.Get(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if session.ActorID != actorID {
		return nil, apperrors.ErrNotOwner
	}
	return session, nil
}

func (s *CheckoutServiceImpl) Begin(ctx context.Context, req model.BeginCheckoutRequest) (resp *model.CheckoutResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.begin",
		attribute.String("showtime_id", req.ShowtimeID),
		attribute.Int("seats", len(req.Seats)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if req.ActorID == "" || req.ShowtimeID == "" {
		return nil, fmt.Errorf("%w: actor and showtime are required", apperrors.ErrInvalidInput)
	}
	if err := model.ValidateLines(req.Seats, req.Items, req.Total); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}

	session := &model.CheckoutSession{
		OrderRef:    uuid.New().String(),
		ActorID:     req.ActorID,
		ShowtimeID:  req.ShowtimeID,
		Seats:       req.Seats,
		Items:       req.Items,
		DiscountRef: req.DiscountRef,
		Total:       req.Total,
		CreatedAt:   s.clock.Now(),
	}

	// 1. 延長座位保留至 session 到期，任一座位不屬於 actor 則不建立 session
	if err := s.holds.RefreshSeats(ctx, req.ShowtimeID, session.SeatIDs(), req.ActorID, s.sessionTTL); err != nil {
		return nil, err
	}

	// 2. 建立 session
	if err := s.sessions.Create(ctx, session, s.sessionTTL); err != nil {
		return nil, err
	}

	// 3. 取得付款網址，失敗時刪除 session 但保留座位讓使用者重試
	expiresAt := session.CreatedAt.Add(s.sessionTTL)
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.returnURL
	}
	paymentURL, err := s.gateway.BuildPaymentURL(ctx, payment.PaymentRequest{
		OrderRef:    session.OrderRef,
		Amount:      session.Total,
		Description: fmt.Sprintf("showtime %s", session.ShowtimeID),
		ReturnURL:   returnURL,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		if delErr := s.sessions.Delete(context.WithoutCancel(ctx), session.OrderRef); delErr != nil {
			logger.WithComponent("checkout").Warn("delete checkout session failed",
				zap.String("order_ref", session.OrderRef),
				zap.Error(delErr),
			)
		}
		if errors.Is(err, apperrors.ErrPaymentGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrPaymentGateway, err)
	}

	return &model.CheckoutResponse{
		OrderRef:   session.OrderRef,
		PaymentURL: paymentURL,
		ExpiresAt:  expiresAt,
	}, nil
}
