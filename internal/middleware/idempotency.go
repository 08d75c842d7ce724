package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go-gin-seat-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "X-Idempotency-Key"
	IdempotencyKeyPrefix = "idempotency:"

	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultProcessingTTL  = 60 * time.Second
)

type IdempotencyStatus string

const (
	StatusProcessing IdempotencyStatus = "processing"
	StatusCompleted  IdempotencyStatus = "completed"
)

type IdempotencyRecord struct {
	Status       IdempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
}

type IdempotencyConfig struct {
	Redis *redis.Client
	// 完成後保留回應的時間
	TTL time.Duration
	// 處理中紀錄的時間，程序中斷時讓 key 可以重試
	ProcessingTTL time.Duration
}

func IdempotencyKey(key string) string {
	return IdempotencyKeyPrefix + key
}

// Idempotency 依 X-Idempotency-Key 去重：完成的請求回放原回應，處理中回 409
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.ProcessingTTL == 0 {
		cfg.ProcessingTTL = DefaultProcessingTTL
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "X-Idempotency-Key header is required",
			})
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "failed to read request body",
				})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}
		hash := requestHash(c, body)
		redisKey := IdempotencyKey(key)
		ctx := c.Request.Context()
		log := logger.WithComponent("idempotency").With(zap.String("key", key))

		record := &IdempotencyRecord{
			Status:      StatusProcessing,
			RequestHash: hash,
			CreatedAt:   time.Now(),
		}
		created, err := setRecord(ctx, cfg.Redis, redisKey, record, cfg.ProcessingTTL, true)
		if err != nil {
			// Redis 無法使用時不阻擋請求
			log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !created {
			replay(c, cfg.Redis, redisKey, hash, log)
			return
		}

		rw := &idempotencyResponseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
			status:         http.StatusOK,
		}
		c.Writer = rw

		c.Next()

		saveCtx := context.WithoutCancel(ctx)
		// 5xx 視為可重試，刪除紀錄
		if rw.status >= http.StatusInternalServerError {
			if err := cfg.Redis.Del(saveCtx, redisKey).Err(); err != nil {
				log.Warn("delete idempotency record failed", zap.Error(err))
			}
			return
		}

		record.Status = StatusCompleted
		record.ResponseCode = rw.status
		record.ResponseBody = rw.body.String()
		if _, err := setRecord(saveCtx, cfg.Redis, redisKey, record, cfg.TTL, false); err != nil {
			log.Warn("save idempotency record failed", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, client *redis.Client, redisKey, hash string, log *zap.Logger) {
	existing, err := getRecord(c.Request.Context(), client, redisKey)
	if err != nil {
		log.Warn("read idempotency record failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error": "A request with this idempotency key is already being processed",
		})
		return
	}
	if existing.RequestHash != hash {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Idempotency key already used with a different request",
		})
		return
	}
	if existing.Status == StatusProcessing {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error": "A request with this idempotency key is already being processed",
		})
		return
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(existing.ResponseCode, "application/json; charset=utf-8", []byte(existing.ResponseBody))
	c.Abort()
}

type idempotencyResponseWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *idempotencyResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestHash(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))
	h.Write([]byte(ActorID(c)))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func getRecord(ctx context.Context, client *redis.Client, key string) (*IdempotencyRecord, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var record IdempotencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func setRecord(ctx context.Context, client *redis.Client, key string, record *IdempotencyRecord, ttl time.Duration, onlyIfAbsent bool) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	if onlyIfAbsent {
		return client.SetNX(ctx, key, data, ttl).Result()
	}
	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}
