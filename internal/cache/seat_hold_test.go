package cache_test

import (
	"context"
	"fmt"
	"go-gin-seat-booking/internal/cache"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatHoldStore_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - granted", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)

		outcome, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeOK, outcome)

		val, err := mr.Get("hold:st-1:A1")
		require.NoError(t, err)
		assert.Equal(t, "alice", val)
		assert.Equal(t, time.Minute, mr.TTL("hold:st-1:A1"))
	})

	t.Run("Success - same actor re-acquire keeps TTL", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)

		_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)
		mr.FastForward(20 * time.Second)

		outcome, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeAlreadyHeld, outcome)
		assert.Equal(t, 40*time.Second, mr.TTL("hold:st-1:A1"))
	})

	t.Run("Failed - held by another actor", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)

		_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)

		outcome, err := store.Acquire(ctx, "st-1", "A1", "bob", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeNotOwner, outcome)

		val, _ := mr.Get("hold:st-1:A1")
		assert.Equal(t, "alice", val)
	})

	t.Run("Success - granted after expiry", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)

		_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)
		mr.FastForward(time.Minute + time.Second)

		outcome, err := store.Acquire(ctx, "st-1", "A1", "bob", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeOK, outcome)
	})

	t.Run("Failed - store unavailable", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)
		mr.Close()

		outcome, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
		assert.NotEqual(t, cache.HoldOutcomeOK, outcome)
	})
}

func TestSeatHoldStore_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := cache.NewRedisSeatHoldStore(client)

	const actors = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(actor string) {
			defer wg.Done()
			outcome, err := store.Acquire(ctx, "st-1", "A1", actor, time.Minute)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			if outcome == cache.HoldOutcomeOK {
				mu.Lock()
				winners = append(winners, actor)
				mu.Unlock()
			}
		}(fmt.Sprintf("actor-%d", i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	holder, err := store.Holder(ctx, "st-1", "A1")
	require.NoError(t, err)
	assert.Equal(t, winners[0], holder)
}

func TestSeatHoldStore_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - owner extends TTL", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)
		_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)

		outcome, err := store.Refresh(ctx, "st-1", "A1", "alice", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeOK, outcome)
		assert.Equal(t, 15*time.Minute, mr.TTL("hold:st-1:A1"))
	})

	t.Run("Failed - not owner", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)
		_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)

		outcome, err := store.Refresh(ctx, "st-1", "A1", "bob", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeNotOwner, outcome)
		assert.Equal(t, time.Minute, mr.TTL("hold:st-1:A1"))
	})

	t.Run("Failed - not found", func(t *testing.T) {
		_, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)

		outcome, err := store.Refresh(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeNotFound, outcome)
	})
}

func TestSeatHoldStore_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - owner releases", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)
		_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)

		outcome, err := store.Release(ctx, "st-1", "A1", "alice")
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeOK, outcome)
		assert.False(t, mr.Exists("hold:st-1:A1"))
	})

	t.Run("Failed - not owner keeps hold", func(t *testing.T) {
		mr, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)
		_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
		require.NoError(t, err)

		outcome, err := store.Release(ctx, "st-1", "A1", "bob")
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeNotOwner, outcome)
		assert.True(t, mr.Exists("hold:st-1:A1"))
	})

	t.Run("Success - missing hold is a no-op", func(t *testing.T) {
		_, client := newTestRedis(t)
		store := cache.NewRedisSeatHoldStore(client)

		outcome, err := store.Release(ctx, "st-1", "A1", "alice")
		require.NoError(t, err)
		assert.Equal(t, cache.HoldOutcomeNotFound, outcome)
	})
}

func TestSeatHoldStore_Delete(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := cache.NewRedisSeatHoldStore(client)
	_, err := store.Acquire(ctx, "st-1", "A1", "alice", time.Minute)
	require.NoError(t, err)
	_, err = store.Acquire(ctx, "st-1", "A2", "bob", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "st-1", "A1", "A2", "A3"))
	assert.False(t, mr.Exists("hold:st-1:A1"))
	assert.False(t, mr.Exists("hold:st-1:A2"))
	assert.NoError(t, store.Delete(ctx, "st-1"))
}
