package cache

import (
	"context"
	"errors"
	"fmt"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"go-gin-seat-booking/pkg/telemetry"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

type SeatHoldStore interface {
	// 取得：座位無人保留時寫入 actor，同一 actor 重複取得回傳 AlreadyHeld 且不延長
	Acquire(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (HoldOutcome, error)
	// 延長：僅持有者可延長 (Lua 比對後 PEXPIRE)
	Refresh(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (HoldOutcome, error)
	// 釋放：僅持有者可刪除 (Lua 比對後 DEL)
	Release(ctx context.Context, showtimeID, seatID, actorID string) (HoldOutcome, error)
	// 清除：不檢查持有者，僅供結算成功後使用
	Delete(ctx context.Context, showtimeID string, seatIDs ...string) error
	// 查詢：回傳持有者，無保留時回傳空字串
	Holder(ctx context.Context, showtimeID, seatID string) (string, error)
}

// HoldOutcome 比對持有者後的腳本結果
type HoldOutcome int

const (
	HoldOutcomeNotOwner    HoldOutcome = 0
	HoldOutcomeOK          HoldOutcome = 1
	HoldOutcomeAlreadyHeld HoldOutcome = 2
	HoldOutcomeNotFound    HoldOutcome = -1
)

var acquireScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if not current then
		redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
		return 1
	end
	if current == ARGV[1] then
		return 2 -- 已由同一 actor 持有
	end
	return 0
`)

var refreshScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if not current then
		return -1
	end
	if current ~= ARGV[1] then
		return 0
	end
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 1
`)

var releaseScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if not current then
		return -1
	end
	if current ~= ARGV[1] then
		return 0
	end
	redis.call('DEL', KEYS[1])
	return 1
`)

type RedisSeatHoldStoreImpl struct {
	client *redis.Client
}

func NewRedisSeatHoldStore(client *redis.Client) SeatHoldStore {
	return &RedisSeatHoldStoreImpl{
		client: client,
	}
}

// 保留 key
func HoldKey(showtimeID, seatID string) string {
	return fmt.Sprintf("hold:%s:%s", showtimeID, seatID)
}

func (s *RedisSeatHoldStoreImpl) Acquire(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (outcome HoldOutcome, err error) {
	ctx, span := telemetry.StartSpan(ctx, "cache.hold.acquire",
		attribute.String("showtime_id", showtimeID),
		attribute.String("seat_id", seatID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	code, err := acquireScript.Run(ctx, s.client, []string{HoldKey(showtimeID, seatID)}, actorID, ttl.Milliseconds()).Int()
	if err != nil {
		return HoldOutcomeNotOwner, storeError("acquire hold", err)
	}
	span.SetAttributes(attribute.Int("result", code))
	return toOutcome(code)
}

func (s *RedisSeatHoldStoreImpl) Refresh(ctx context.Context, showtimeID, seatID, actorID string, ttl time.Duration) (outcome HoldOutcome, err error) {
	ctx, span := telemetry.StartSpan(ctx, "cache.hold.refresh",
		attribute.String("showtime_id", showtimeID),
		attribute.String("seat_id", seatID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	code, err := refreshScript.Run(ctx, s.client, []string{HoldKey(showtimeID, seatID)}, actorID, ttl.Milliseconds()).Int()
	if err != nil {
		return HoldOutcomeNotFound, storeError("refresh hold", err)
	}
	return toOutcome(code)
}

func (s *RedisSeatHoldStoreImpl) Release(ctx context.Context, showtimeID, seatID, actorID string) (outcome HoldOutcome, err error) {
	ctx, span := telemetry.StartSpan(ctx, "cache.hold.release",
		attribute.String("showtime_id", showtimeID),
		attribute.String("seat_id", seatID),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	code, err := releaseScript.Run(ctx, s.client, []string{HoldKey(showtimeID, seatID)}, actorID).Int()
	if err != nil {
		return HoldOutcomeNotFound, storeError("release hold", err)
	}
	return toOutcome(code)
}

func (s *RedisSeatHoldStoreImpl) Delete(ctx context.Context, showtimeID string, seatIDs ...string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		keys = append(keys, HoldKey(showtimeID, seatID))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return storeError("delete holds", err)
	}
	return nil
}

func (s *RedisSeatHoldStoreImpl) Holder(ctx context.Context, showtimeID, seatID string) (string, error) {
	actorID, err := s.client.Get(ctx, HoldKey(showtimeID, seatID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", storeError("get hold", err)
	}
	return actorID, nil
}

func toOutcome(code int) (HoldOutcome, error) {
	switch code {
	case 1:
		return HoldOutcomeOK, nil
	case 2:
		return HoldOutcomeAlreadyHeld, nil
	case 0:
		return HoldOutcomeNotOwner, nil
	case -1:
		return HoldOutcomeNotFound, nil
	default:
		return HoldOutcomeNotFound, errors.New("unexpected result")
	}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStoreUnavailable, err)
}
