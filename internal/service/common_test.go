package service_test

import (
	"context"
	"errors"
	"fmt"
	"go-gin-seat-booking/internal/cache"
	"go-gin-seat-booking/internal/clock"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/payment"
	"go-gin-seat-booking/internal/service"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

const (
	testHoldTTL    = 5 * time.Minute
	testSessionTTL = 15 * time.Minute
)

func seatKey(showtimeID, seatID string) string {
	return showtimeID + "/" + seatID
}

// fakeDB 以記憶體模擬 PostgreSQL，同時實作四個 repository
type fakeDB struct {
	mu        sync.Mutex
	seats     map[string]model.SeatShowtime
	sales     map[string]*model.Sale
	loyalty   map[string]model.LoyaltyProfile
	catalog   map[model.ItemKind]map[string]int64
	createErr error
}

type fakeSnapshot struct {
	seats   map[string]model.SeatShowtime
	sales   map[string]*model.Sale
	loyalty map[string]model.LoyaltyProfile
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		seats:   make(map[string]model.SeatShowtime),
		sales:   make(map[string]*model.Sale),
		loyalty: make(map[string]model.LoyaltyProfile),
		catalog: map[model.ItemKind]map[string]int64{
			model.ItemKindCombo:   {},
			model.ItemKindProduct: {},
		},
	}
}

func (db *fakeDB) addSeat(showtimeID, seatID string, status model.SeatStatus, price int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seats[seatKey(showtimeID, seatID)] = model.SeatShowtime{
		ShowtimeID: showtimeID,
		SeatID:     seatID,
		Status:     status,
		Price:      price,
	}
}

func (db *fakeDB) addItem(kind model.ItemKind, itemID string, price int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.catalog[kind][itemID] = price
}

func (db *fakeDB) addLoyalty(actorID string, points int64, tierID string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.loyalty[actorID] = model.LoyaltyProfile{ActorID: actorID, Points: points, TierID: tierID}
}

func (db *fakeDB) setCreateErr(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.createErr = err
}

func (db *fakeDB) seatStatus(showtimeID, seatID string) model.SeatStatus {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.seats[seatKey(showtimeID, seatID)].Status
}

func (db *fakeDB) saleCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sales)
}

func (db *fakeDB) loyaltyProfile(actorID string) model.LoyaltyProfile {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.loyalty[actorID]
}

func (db *fakeDB) snapshot() fakeSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := fakeSnapshot{
		seats:   make(map[string]model.SeatShowtime, len(db.seats)),
		sales:   make(map[string]*model.Sale, len(db.sales)),
		loyalty: make(map[string]model.LoyaltyProfile, len(db.loyalty)),
	}
	for k, v := range db.seats {
		snap.seats[k] = v
	}
	for k, v := range db.sales {
		snap.sales[k] = v
	}
	for k, v := range db.loyalty {
		snap.loyalty[k] = v
	}
	return snap
}

func (db *fakeDB) restore(snap fakeSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seats = snap.seats
	db.sales = snap.sales
	db.loyalty = snap.loyalty
}

func (db *fakeDB) ListByShowtime(ctx context.Context, showtimeID string) ([]*model.SeatShowtime, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var seats []*model.SeatShowtime
	for _, seat := range db.seats {
		if seat.ShowtimeID == showtimeID {
			s := seat
			seats = append(seats, &s)
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatID < seats[j].SeatID })
	return seats, nil
}

func (db *fakeDB) LockSeats(ctx context.Context, tx pgx.Tx, showtimeID string, seatIDs []string) ([]*model.SeatShowtime, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var seats []*model.SeatShowtime
	for _, seatID := range seatIDs {
		if seat, ok := db.seats[seatKey(showtimeID, seatID)]; ok {
			s := seat
			seats = append(seats, &s)
		}
	}
	return seats, nil
}

func (db *fakeDB) MarkSold(ctx context.Context, tx pgx.Tx, showtimeID string, seatIDs []string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var affected int64
	for _, seatID := range seatIDs {
		key := seatKey(showtimeID, seatID)
		seat, ok := db.seats[key]
		if !ok || seat.Status != model.SeatStatusOpen {
			continue
		}
		seat.Status = model.SeatStatusSold
		db.seats[key] = seat
		affected++
	}
	return affected, nil
}

func (db *fakeDB) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, sale := range db.sales {
		if sale.ID == id {
			return sale, nil
		}
	}
	return nil, apperrors.ErrSaleNotFound
}

func (db *fakeDB) FindByOrderRef(ctx context.Context, orderRef string) (*model.Sale, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if sale, ok := db.sales[orderRef]; ok {
		return sale, nil
	}
	return nil, apperrors.ErrSaleNotFound
}

func (db *fakeDB) FindByOrderRefTx(ctx context.Context, tx pgx.Tx, orderRef string) (*model.Sale, error) {
	return db.FindByOrderRef(ctx, orderRef)
}

func (db *fakeDB) Create(ctx context.Context, tx pgx.Tx, sale *model.Sale) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.createErr != nil {
		return db.createErr
	}
	if _, ok := db.sales[sale.OrderRef]; ok {
		return apperrors.ErrAlreadySettled
	}
	if sale.PaymentRef != nil {
		for _, existing := range db.sales {
			if existing.PaymentRef != nil && *existing.PaymentRef == *sale.PaymentRef {
				return apperrors.ErrPaymentRefReused
			}
		}
	}
	db.sales[sale.OrderRef] = sale
	return nil
}

func (db *fakeDB) FindForUpdate(ctx context.Context, tx pgx.Tx, actorID string) (*model.LoyaltyProfile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	profile, ok := db.loyalty[actorID]
	if !ok {
		return nil, apperrors.ErrLoyaltyNotFound
	}
	return &profile, nil
}

func (db *fakeDB) Update(ctx context.Context, tx pgx.Tx, profile *model.LoyaltyProfile) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.loyalty[profile.ActorID] = *profile
	return nil
}

func (db *fakeDB) ItemPrices(ctx context.Context, tx pgx.Tx, kind model.ItemKind, itemIDs []string) (map[string]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	prices := make(map[string]int64)
	for _, id := range itemIDs {
		if price, ok := db.catalog[kind][id]; ok {
			prices[id] = price
		}
	}
	return prices, nil
}

// fakeTxManager 一次只允許一個 transaction，失敗時還原快照
type fakeTxManager struct {
	mu sync.Mutex
	db *fakeDB
}

func (m *fakeTxManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.db.snapshot()
	if err := fn(nil); err != nil {
		m.db.restore(snap)
		return err
	}
	return nil
}

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	requests []payment.PaymentRequest
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) BuildPaymentURL(ctx context.Context, req payment.PaymentRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.requests = append(g.requests, req)
	return fmt.Sprintf("https://pay.example.test/checkout?order_ref=%s", req.OrderRef), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []*model.SaleCompletedEvent
}

func (p *fakePublisher) PublishSaleCompleted(ctx context.Context, event *model.SaleCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []*model.SaleCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.SaleCompletedEvent(nil), p.events...)
}

type testEnv struct {
	mr         *miniredis.Miniredis
	client     *redis.Client
	db         *fakeDB
	sessions   cache.CheckoutSessionStore
	holds      service.HoldService
	checkouts  service.CheckoutService
	settlement service.SettlementService
	expiry     service.ExpiryService
	payments   service.PaymentService
	gateway    *fakeGateway
	publisher  *fakePublisher
	clock      *clock.Fixed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		client.Close()
	})

	env := &testEnv{
		mr:        mr,
		client:    client,
		db:        newFakeDB(),
		gateway:   &fakeGateway{},
		publisher: &fakePublisher{},
		clock:     clock.NewFixed(time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)),
	}
	env.sessions = cache.NewRedisCheckoutSessionStore(client)
	env.holds = service.NewHoldService(cache.NewRedisSeatHoldStore(client), env.clock, testHoldTTL)
	env.checkouts = service.NewCheckoutService(env.sessions, env.holds, env.gateway, env.clock, service.CheckoutConfig{
		SessionTTL: testSessionTTL,
		ReturnURL:  "https://cinema.example.test/payments/return",
	})
	env.settlement = service.NewSettlementService(
		&fakeTxManager{db: env.db},
		env.db,
		env.db,
		env.db,
		env.db,
		env.checkouts,
		env.holds,
		env.publisher,
		env.clock,
		model.LoyaltyPolicy{PointsPerCurrencyUnit: 1000, TierUpgradeThreshold: 500, TierID: "gold"},
	)
	env.expiry = service.NewExpiryService(env.checkouts, env.holds)
	env.payments = service.NewPaymentService(env.settlement, env.expiry)
	return env
}

// holdAndBegin 保留座位並進入付款流程
func (env *testEnv) holdAndBegin(t *testing.T, actorID, showtimeID string, seats []model.SessionSeat, total int64) *model.CheckoutResponse {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, len(seats))
	for _, seat := range seats {
		ids = append(ids, seat.SeatID)
	}
	if _, err := env.holds.AcquireSeats(ctx, showtimeID, ids, actorID, 0); err != nil {
		t.Fatalf("Failed to acquire holds: %v", err)
	}
	resp, err := env.checkouts.Begin(ctx, model.BeginCheckoutRequest{
		ShowtimeID: showtimeID,
		Seats:      seats,
		Total:      total,
		ActorID:    actorID,
	})
	if err != nil {
		t.Fatalf("Failed to begin checkout: %v", err)
	}
	return resp
}

func successCallback(orderRef, externalRef string) *model.PaymentCallback {
	return &model.PaymentCallback{
		OrderRef:    orderRef,
		Code:        payment.SuccessCode,
		ExternalRef: externalRef,
		Success:     true,
	}
}

var errTransient = errors.New("connection reset by peer")
