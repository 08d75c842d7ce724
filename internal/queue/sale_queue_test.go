package queue_test

import (
	"context"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/queue"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent(orderRef string) *model.SaleCompletedEvent {
	return &model.SaleCompletedEvent{
		SaleID:        uuid.New(),
		OrderRef:      orderRef,
		ShowtimeID:    "st-1",
		SeatIDs:       []string{"A1", "A2"},
		Total:         200,
		PaymentMethod: model.PaymentMethodOnline,
		SettledAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, deliveries <-chan queue.Delivery) queue.Delivery {
	t.Helper()
	select {
	case d, ok := <-deliveries:
		require.True(t, ok, "deliveries channel closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("超時！沒有收到事件")
	}
	return queue.Delivery{}
}

func TestMemorySaleQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemorySaleQueue(4)
	deliveries, err := q.SubscribeSaleCompleted(ctx)
	require.NoError(t, err)

	require.NoError(t, q.PublishSaleCompleted(ctx, newTestEvent("ref-1")))
	d := receive(t, deliveries)
	assert.Equal(t, "ref-1", d.Data.OrderRef)

	// Nack(requeue) 會重新投遞同一事件
	d.Nack(true)
	again := receive(t, deliveries)
	assert.Equal(t, "ref-1", again.Data.OrderRef)
	again.Ack()

	cancel()
	for range deliveries {
	}
}

func TestMemorySaleQueue_PublishCancelled(t *testing.T) {
	q := queue.NewMemorySaleQueue(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.PublishSaleCompleted(ctx, newTestEvent("ref-1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisStreamSaleQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q, err := queue.NewRedisStreamSaleQueue(client, "test", &queue.RedisStreamSaleQueueConfig{
		BlockTime:        100 * time.Millisecond,
		ClaimMinIdleTime: time.Minute,
	})
	require.NoError(t, err)

	// 重複建立 consumer group 不應失敗
	_, err = queue.NewRedisStreamSaleQueue(client, "test-2", nil)
	require.NoError(t, err)

	require.NoError(t, q.PublishSaleCompleted(ctx, newTestEvent("ref-1")))
	n, err := client.XLen(ctx, queue.StreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deliveries, err := q.SubscribeSaleCompleted(ctx)
	require.NoError(t, err)

	d := receive(t, deliveries)
	assert.Equal(t, "ref-1", d.Data.OrderRef)
	assert.Equal(t, []string{"A1", "A2"}, d.Data.SeatIDs)
	d.Ack()

	pending, err := client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: queue.StreamKey,
		Group:  queue.ConsumerGroupName,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	summary, err := client.XPending(context.Background(), queue.StreamKey, queue.ConsumerGroupName).Result()
	require.NoError(t, err)
	return summary.Count
}

func TestRedisStreamSaleQueue_DropsMalformedAndDiscardsOnNack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q, err := queue.NewRedisStreamSaleQueue(client, "test", &queue.RedisStreamSaleQueueConfig{
		BlockTime:        100 * time.Millisecond,
		ClaimMinIdleTime: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: queue.StreamKey,
		Values: map[string]interface{}{"event": "not-json"},
	}).Err())
	require.NoError(t, q.PublishSaleCompleted(ctx, newTestEvent("ref-2")))

	deliveries, err := q.SubscribeSaleCompleted(ctx)
	require.NoError(t, err)

	d := receive(t, deliveries)
	assert.Equal(t, "ref-2", d.Data.OrderRef)
	assert.Equal(t, int64(1), pendingCount(t, client))

	d.Nack(false)
	assert.Equal(t, int64(0), pendingCount(t, client))
}
