package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type CheckoutSessionStore interface {
	// 建立：order ref 已存在時回傳 ErrOrderRefExists
	Create(ctx context.Context, session *model.CheckoutSession, ttl time.Duration) error
	Get(ctx context.Context, orderRef string) (*model.CheckoutSession, error)
	// 刪除：不存在時不視為錯誤
	Delete(ctx context.Context, orderRef string) error
}

type RedisCheckoutSessionStoreImpl struct {
	client *redis.Client
}

func NewRedisCheckoutSessionStore(client *redis.Client) CheckoutSessionStore {
	return &RedisCheckoutSessionStoreImpl{
		client: client,
	}
}

// 待付款訂單 key
func SessionKey(orderRef string) string {
	return fmt.Sprintf("order:%s", orderRef)
}

func EncodeCheckoutSession(session *model.CheckoutSession) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout session: %w", err)
	}
	return data, nil
}

func DecodeCheckoutSession(data []byte) (*model.CheckoutSession, error) {
	var session model.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	if session.OrderRef == "" {
		return nil, fmt.Errorf("unmarshal checkout session: missing order_ref")
	}
	return &session, nil
}

func (s *RedisCheckoutSessionStoreImpl) Create(ctx context.Context, session *model.CheckoutSession, ttl time.Duration) error {
	data, err := EncodeCheckoutSession(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, SessionKey(session.OrderRef), data, ttl).Result()
	if err != nil {
		return storeError("create checkout session", err)
	}
	if !ok {
		return apperrors.ErrOrderRefExists
	}
	return nil
}

func (s *RedisCheckoutSessionStoreImpl) Get(ctx context.Context, orderRef string) (*model.CheckoutSession, error) {
	data, err := s.client.Get(ctx, SessionKey(orderRef)).Bytes()
	if err == redis.Nil {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, storeError("get checkout session", err)
	}
	return DecodeCheckoutSession(data)
}

func (s *RedisCheckoutSessionStoreImpl) Delete(ctx context.Context, orderRef string) error {
	if err := s.client.Del(ctx, SessionKey(orderRef)).Err(); err != nil {
		return storeError("delete checkout session", err)
	}
	return nil
}
