package service_test

import (
	"context"
	"errors"
	"go-gin-seat-booking/internal/cache"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoSeats() []model.SessionSeat {
	return []model.SessionSeat{
		{SeatID: "A1", Price: 100000},
		{SeatID: "A2", Price: 100000},
	}
}

func TestCheckoutService_Begin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp := env.holdAndBegin(t, "actor-x", "S1", twoSeats(), 200000)
	assert.NotEmpty(t, resp.OrderRef)
	assert.Contains(t, resp.PaymentURL, resp.OrderRef)
	assert.Equal(t, env.clock.Now().Add(testSessionTTL), resp.ExpiresAt)

	// holds 延長到 session TTL
	assert.Equal(t, testSessionTTL, env.mr.TTL(cache.HoldKey("S1", "A1")))
	assert.Equal(t, testSessionTTL, env.mr.TTL(cache.HoldKey("S1", "A2")))
	assert.Equal(t, testSessionTTL, env.mr.TTL(cache.SessionKey(resp.OrderRef)))

	session, err := env.checkouts.Get(ctx, resp.OrderRef)
	require.NoError(t, err)
	assert.Equal(t, "actor-x", session.ActorID)
	assert.Equal(t, []string{"A1", "A2"}, session.SeatIDs())
	assert.Equal(t, int64(200000), session.Total)

	require.Len(t, env.gateway.requests, 1)
	assert.Equal(t, int64(200000), env.gateway.requests[0].Amount)
	assert.Equal(t, "https://cinema.example.test/payments/return", env.gateway.requests[0].ReturnURL)
}

func TestCheckoutService_Begin_SeatNotHeld(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.holds.Acquire(ctx, "S1", "A1", "actor-x", 0)
	require.NoError(t, err)
	_, err = env.holds.Acquire(ctx, "S1", "A2", "actor-y", 0)
	require.NoError(t, err)

	_, err = env.checkouts.Begin(ctx, model.BeginCheckoutRequest{
		ShowtimeID: "S1",
		Seats:      twoSeats(),
		Total:      200000,
		ActorID:    "actor-x",
	})
	var conflict *apperrors.HoldConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A2"}, conflict.Seats)
	assert.Len(t, env.mr.Keys(), 2)
}

func TestCheckoutService_Begin_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.checkouts.Begin(context.Background(), model.BeginCheckoutRequest{
		ShowtimeID: "S1",
		Seats:      []model.SessionSeat{{SeatID: "A1", Price: 1}, {SeatID: "A1", Price: 1}},
		ActorID:    "actor-x",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCheckoutService_Begin_GatewayFailureKeepsHolds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.gateway.err = errors.New("gateway timeout")

	_, err := env.holds.AcquireSeats(ctx, "S1", []string{"A1", "A2"}, "actor-x", 0)
	require.NoError(t, err)

	_, err = env.checkouts.Begin(ctx, model.BeginCheckoutRequest{
		ShowtimeID: "S1",
		Seats:      twoSeats(),
		Total:      200000,
		ActorID:    "actor-x",
	})
	assert.ErrorIs(t, err, apperrors.ErrPaymentGateway)

	// session 已刪除，holds 仍屬於 actor
	assert.ElementsMatch(t, []string{cache.HoldKey("S1", "A1"), cache.HoldKey("S1", "A2")}, env.mr.Keys())
}

func TestCheckoutService_CreateGetDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	session := &model.CheckoutSession{
		OrderRef:   "order-1",
		ActorID:    "actor-x",
		ShowtimeID: "S1",
		Seats:      twoSeats(),
		Total:      200000,
		CreatedAt:  env.clock.Now(),
	}
	require.NoError(t, env.checkouts.Create(ctx, session))
	assert.ErrorIs(t, env.checkouts.Create(ctx, session), apperrors.ErrOrderRefExists)

	got, err := env.checkouts.Find(ctx, "order-1", "actor-x")
	require.NoError(t, err)
	assert.Equal(t, session.Seats, got.Seats)

	_, err = env.checkouts.Find(ctx, "order-1", "actor-y")
	assert.ErrorIs(t, err, apperrors.ErrNotOwner)

	require.NoError(t, env.checkouts.Delete(ctx, "order-1"))
	require.NoError(t, env.checkouts.Delete(ctx, "order-1"))

	_, err = env.checkouts.Get(ctx, "order-1")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestCheckoutService_Create_InvalidSession(t *testing.T) {
	env := newTestEnv(t)

	err := env.checkouts.Create(context.Background(), &model.CheckoutSession{OrderRef: "order-1", ActorID: "actor-x", ShowtimeID: "S1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
