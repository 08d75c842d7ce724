package payment

import (
	"context"
	"go-gin-seat-booking/internal/model"
	"net/url"
	"time"
)

// SuccessCode 閘道回傳的付款成功代碼，其餘代碼一律視為失敗
const SuccessCode = "00"

type PaymentRequest struct {
	OrderRef    string
	Amount      int64
	Description string
	ReturnURL   string
	ExpiresAt   time.Time
}

type Gateway interface {
	Name() string
	// BuildPaymentURL 產生導向付款頁的網址
	BuildPaymentURL(ctx context.Context, req PaymentRequest) (string, error)
}

// ReturnParser 解析瀏覽器導回的付款結果
type ReturnParser interface {
	ParseReturn(query url.Values) (*model.PaymentCallback, error)
}

// WebhookParser 解析伺服器對伺服器的付款通知；不需處理的事件回傳 nil
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*model.PaymentCallback, error)
}
