package service

import (
	"context"
	"errors"
	"fmt"
	"go-gin-seat-booking/internal/clock"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/repository"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"go-gin-seat-booking/pkg/logger"
	"go-gin-seat-booking/pkg/telemetry"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// 提交後清理 (hold / session / event) 的逾時
const cleanupTimeout = 5 * time.Second

// SaleEventPublisher 結算提交後發送銷售完成事件
type SaleEventPublisher interface {
	PublishSaleCompleted(ctx context.Context, event *model.SaleCompletedEvent) error
}

type SettlementService interface {
	// 線上付款成功回呼
	SettleOnline(ctx context.Context, cb *model.PaymentCallback) (*model.SettlementResult, error)
	// 櫃台現金銷售
	SettleCash(ctx context.Context, req model.CounterSaleRequest, staffID string) (*model.SettlementResult, error)
}

type SettlementServiceImpl struct {
	txm         repository.TxManager
	seatRepo    repository.SeatRepository
	saleRepo    repository.SaleRepository
	loyaltyRepo repository.LoyaltyRepository
	catalogRepo repository.CatalogRepository
	checkouts   CheckoutService
	holds       HoldService
	publisher   SaleEventPublisher
	clock       clock.Clock
	loyalty     model.LoyaltyPolicy
}

func NewSettlementService(
	txm repository.TxManager,
	seatRepo repository.SeatRepository,
	saleRepo repository.SaleRepository,
	loyaltyRepo repository.LoyaltyRepository,
	catalogRepo repository.CatalogRepository,
	checkouts CheckoutService,
	holds HoldService,
	publisher SaleEventPublisher,
	clk clock.Clock,
	loyalty model.LoyaltyPolicy,
) SettlementService {
	return &SettlementServiceImpl{
		txm:         txm,
		seatRepo:    seatRepo,
		saleRepo:    saleRepo,
		loyaltyRepo: loyaltyRepo,
		catalogRepo: catalogRepo,
		checkouts:   checkouts,
		holds:       holds,
		publisher:   publisher,
		clock:       clk,
		loyalty:     loyalty,
	}
}

// settlement 線上與現金兩種入口共用的結算內容
type settlement struct {
	orderRef    string
	holder      string
	hasSession  bool
	showtimeID  string
	seats       []model.SessionSeat
	items       []model.SessionItem
	discountRef *string
	total       int64
	customerID  *string
	sellerID    *string
	method      model.PaymentMethod
	paymentRef  *string
}

func (st *settlement) seatIDs() []string {
	ids := make([]string, 0, len(st.seats))
	for _, seat := range st.seats {
		ids = append(ids, seat.SeatID)
	}
	return ids
}

func (s *SettlementServiceImpl) SettleOnline(ctx context.Context, cb *model.PaymentCallback) (result *model.SettlementResult, err error) {
	if cb == nil || cb.OrderRef == "" {
		return nil, fmt.Errorf("%w: order_ref is required", apperrors.ErrInvalidInput)
	}
	ctx, span := telemetry.StartSpan(ctx, "service.settlement.online", attribute.String("order_ref", cb.OrderRef))
	defer func() { telemetry.EndSpan(span, err) }()

	// 1. 讀取 session，不存在時判斷是否已結算
	session, err := s.checkouts.Get(ctx, cb.OrderRef)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return s.resolveMissingSession(ctx, cb.OrderRef)
	}
	if err != nil {
		return nil, err
	}

	customerID := session.ActorID
	st := &settlement{
		orderRef:    session.OrderRef,
		holder:      session.ActorID,
		hasSession:  true,
		showtimeID:  session.ShowtimeID,
		seats:       session.Seats,
		items:       session.Items,
		discountRef: session.DiscountRef,
		total:       session.Total,
		customerID:  &customerID,
		method:      model.PaymentMethodOnline,
	}
	if cb.ExternalRef != "" {
		ref := cb.ExternalRef
		st.paymentRef = &ref
	}
	return s.settle(ctx, st)
}

func (s *SettlementServiceImpl) SettleCash(ctx context.Context, req model.CounterSaleRequest, staffID string) (result *model.SettlementResult, err error) {
	if staffID == "" || req.ShowtimeID == "" {
		return nil, fmt.Errorf("%w: staff and showtime are required", apperrors.ErrInvalidInput)
	}
	if err := model.ValidateLines(req.Seats, req.Items, req.Total); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}

	orderRef := uuid.New().String()
	ctx, span := telemetry.StartSpan(ctx, "service.settlement.cash",
		attribute.String("order_ref", orderRef),
		attribute.String("showtime_id", req.ShowtimeID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	seller := staffID
	st := &settlement{
		orderRef:    orderRef,
		holder:      staffID,
		showtimeID:  req.ShowtimeID,
		seats:       req.Seats,
		items:       req.Items,
		discountRef: req.DiscountRef,
		total:       req.Total,
		customerID:  req.CustomerID,
		sellerID:    &seller,
		method:      model.PaymentMethodCash,
	}
	return s.settle(ctx, st)
}

func (s *SettlementServiceImpl) resolveMissingSession(ctx context.Context, orderRef string) (*model.SettlementResult, error) {
	sale, err := s.saleRepo.FindByOrderRef(ctx, orderRef)
	if err == nil {
		return &model.SettlementResult{Outcome: model.OutcomeAlreadySettled, OrderRef: orderRef, Sale: sale}, nil
	}
	if errors.Is(err, apperrors.ErrSaleNotFound) {
		return &model.SettlementResult{Outcome: model.OutcomeExpired, OrderRef: orderRef}, nil
	}
	return nil, fmt.Errorf("%w: %w", apperrors.ErrPersistenceFailure, err)
}

func (s *SettlementServiceImpl) settle(ctx context.Context, st *settlement) (*model.SettlementResult, error) {
	log := logger.WithComponent("settlement")

	var (
		sale     *model.Sale
		existing *model.Sale
	)
	err := s.txm.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		existing, sale, err = s.settleInTx(ctx, tx, st)
		return err
	})

	switch {
	case err == nil && existing != nil:
		s.deleteSession(ctx, st)
		return &model.SettlementResult{Outcome: model.OutcomeAlreadySettled, OrderRef: st.orderRef, Sale: existing}, nil

	case err == nil:
		s.afterCommit(ctx, st, sale)
		log.Info("sale settled",
			zap.String("order_ref", st.orderRef),
			zap.String("sale_id", sale.ID.String()),
			zap.String("payment_method", string(st.method)),
			zap.Int64("total", sale.Total),
		)
		return &model.SettlementResult{Outcome: model.OutcomeSettled, OrderRef: st.orderRef, Sale: sale}, nil

	case errors.Is(err, apperrors.ErrAlreadySettled):
		s.deleteSession(ctx, st)
		prior, findErr := s.saleRepo.FindByOrderRef(ctx, st.orderRef)
		if findErr != nil {
			prior = nil
		}
		return &model.SettlementResult{Outcome: model.OutcomeAlreadySettled, OrderRef: st.orderRef, Sale: prior}, nil
	}

	var conflict *apperrors.SeatConflictError
	if errors.As(err, &conflict) {
		log.Warn("settlement seat conflict",
			zap.String("order_ref", st.orderRef),
			zap.String("showtime_id", st.showtimeID),
			zap.Strings("lost_seats", conflict.Seats),
		)
		s.abandon(ctx, st)
		return &model.SettlementResult{Outcome: model.OutcomeConflict, OrderRef: st.orderRef, LostSeats: conflict.Seats}, nil
	}
	if errors.Is(err, apperrors.ErrPaymentRefReused) {
		// 付款編號已屬於其他訂單，本訂單未成立，需人工對帳
		log.Error("settlement payment reference reused",
			zap.String("order_ref", st.orderRef),
			zap.Error(err),
		)
		s.abandon(ctx, st)
		return nil, err
	}
	if errors.Is(err, apperrors.ErrPriceMismatch) {
		log.Warn("settlement price mismatch",
			zap.String("order_ref", st.orderRef),
			zap.Error(err),
		)
		s.abandon(ctx, st)
		return nil, err
	}

	// 其餘錯誤保留 session 與 hold，讓閘道重送回呼
	log.Error("settlement failed",
		zap.String("order_ref", st.orderRef),
		zap.Error(err),
	)
	return nil, fmt.Errorf("%w: %w", apperrors.ErrPersistenceFailure, err)
}

// settleInTx 回傳已存在的銷售 (重複回呼) 或新建立的銷售
func (s *SettlementServiceImpl) settleInTx(ctx context.Context, tx pgx.Tx, st *settlement) (*model.Sale, *model.Sale, error) {
	seatIDs := st.seatIDs()

	// 1. 鎖定座位
	rows, err := s.seatRepo.LockSeats(ctx, tx, st.showtimeID, seatIDs)
	if err != nil {
		return nil, nil, err
	}

	// 2. 同一 order ref 已結算
	existing, err := s.saleRepo.FindByOrderRefTx(ctx, tx, st.orderRef)
	if err == nil {
		return existing, nil, nil
	}
	if !errors.Is(err, apperrors.ErrSaleNotFound) {
		return nil, nil, err
	}

	// 3. 檢查座位狀態與價格
	locked := make(map[string]*model.SeatShowtime, len(rows))
	for _, row := range rows {
		locked[row.SeatID] = row
	}
	var lost []string
	for _, seat := range st.seats {
		row, ok := locked[seat.SeatID]
		if !ok || row.Status != model.SeatStatusOpen {
			lost = append(lost, seat.SeatID)
		}
	}
	if len(lost) > 0 {
		return nil, nil, &apperrors.SeatConflictError{ShowtimeID: st.showtimeID, Seats: lost}
	}
	for _, seat := range st.seats {
		if locked[seat.SeatID].Price != seat.Price {
			return nil, nil, fmt.Errorf("%w: seat %s", apperrors.ErrPriceMismatch, seat.SeatID)
		}
	}

	// 4. 檢查加購品項價格
	if err := s.verifyItems(ctx, tx, st.items); err != nil {
		return nil, nil, err
	}

	// 5. 標記售出，影響筆數必須等於座位數
	affected, err := s.seatRepo.MarkSold(ctx, tx, st.showtimeID, seatIDs)
	if err != nil {
		return nil, nil, err
	}
	if affected != int64(len(seatIDs)) {
		return nil, nil, &apperrors.SeatConflictError{ShowtimeID: st.showtimeID, Seats: seatIDs}
	}

	// 6. 寫入銷售紀錄
	sale := &model.Sale{
		ID:            uuid.New(),
		OrderRef:      st.orderRef,
		CustomerID:    st.customerID,
		SellerID:      st.sellerID,
		PaymentMethod: st.method,
		PaymentRef:    st.paymentRef,
		ShowtimeID:    st.showtimeID,
		Total:         st.total,
		DiscountRef:   st.discountRef,
		SettledAt:     s.clock.Now(),
		Items:         model.MergeItems(st.items),
	}
	for _, seat := range st.seats {
		sale.Seats = append(sale.Seats, model.SaleSeat{
			SaleID:     sale.ID,
			ShowtimeID: st.showtimeID,
			SeatID:     seat.SeatID,
			Price:      seat.Price,
			Status:     model.SeatStatusSold,
		})
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
	}
	if err := s.saleRepo.Create(ctx, tx, sale); err != nil {
		return nil, nil, err
	}

	// 7. 累積會員點數
	if err := s.applyLoyalty(ctx, tx, st.customerID, st.total); err != nil {
		return nil, nil, err
	}
	return nil, sale, nil
}

func (s *SettlementServiceImpl) verifyItems(ctx context.Context, tx pgx.Tx, items []model.SessionItem) error {
	if len(items) == 0 {
		return nil
	}
	byKind := make(map[model.ItemKind][]string)
	for _, item := range items {
		byKind[item.Kind] = append(byKind[item.Kind], item.ItemID)
	}
	prices := make(map[model.ItemKind]map[string]int64, len(byKind))
	for kind, ids := range byKind {
		found, err := s.catalogRepo.ItemPrices(ctx, tx, kind, ids)
		if err != nil {
			return err
		}
		prices[kind] = found
	}
	for _, item := range items {
		price, ok := prices[item.Kind][item.ItemID]
		if !ok {
			return fmt.Errorf("%w: unknown %s %s", apperrors.ErrPriceMismatch, item.Kind, item.ItemID)
		}
		if price != item.UnitPrice {
			return fmt.Errorf("%w: %s %s", apperrors.ErrPriceMismatch, item.Kind, item.ItemID)
		}
	}
	return nil
}

func (s *SettlementServiceImpl) applyLoyalty(ctx context.Context, tx pgx.Tx, customerID *string, total int64) error {
	if customerID == nil || *customerID == "" {
		return nil
	}
	profile, err := s.loyaltyRepo.FindForUpdate(ctx, tx, *customerID)
	if errors.Is(err, apperrors.ErrLoyaltyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	earned, upgraded := s.loyalty.Accrue(profile, total)
	if earned == 0 && !upgraded {
		return nil
	}
	profile.UpdatedAt = s.clock.Now()
	return s.loyaltyRepo.Update(ctx, tx, profile)
}

// afterCommit 提交後的清理皆為盡力而為，失敗只記錄
func (s *SettlementServiceImpl) afterCommit(ctx context.Context, st *settlement, sale *model.Sale) {
	log := logger.WithComponent("settlement")
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.holds.Purge(cleanupCtx, st.showtimeID, st.seatIDs()); err != nil {
		log.Warn("purge holds failed",
			zap.String("order_ref", st.orderRef),
			zap.String("showtime_id", st.showtimeID),
			zap.Error(err),
		)
	}
	s.deleteSession(cleanupCtx, st)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSaleCompleted(cleanupCtx, model.NewSaleCompletedEvent(sale)); err != nil {
		log.Warn("publish sale completed failed",
			zap.String("order_ref", st.orderRef),
			zap.String("sale_id", sale.ID.String()),
			zap.Error(err),
		)
	}
}

// abandon 結算失敗且不可重試：釋放 actor 的座位並刪除 session
func (s *SettlementServiceImpl) abandon(ctx context.Context, st *settlement) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	s.holds.ReleaseSeats(cleanupCtx, st.showtimeID, st.seatIDs(), st.holder)
	s.deleteSession(cleanupCtx, st)
}

func (s *SettlementServiceImpl) deleteSession(ctx context.Context, st *settlement) {
	if !st.hasSession {
		return
	}
	if err := s.checkouts.Delete(context.WithoutCancel(ctx), st.orderRef); err != nil {
		logger.WithComponent("settlement").Warn("delete checkout session failed",
			zap.String("order_ref", st.orderRef),
			zap.Error(err),
		)
	}
}
