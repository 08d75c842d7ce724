package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"net/url"
	"strconv"
	"time"
)

const signatureParam = "signature"

type HostedGatewayConfig struct {
	BaseURL string
	Secret  string
}

// HostedGateway 以 HMAC 簽章的導向式付款頁
type HostedGateway struct {
	baseURL *url.URL
	secret  []byte
}

func NewHostedGateway(cfg HostedGatewayConfig) (*HostedGateway, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("hosted gateway secret is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid hosted gateway base url %q", cfg.BaseURL)
	}
	return &HostedGateway{baseURL: base, secret: []byte(cfg.Secret)}, nil
}

func (g *HostedGateway) Name() string {
	return "hosted"
}

func (g *HostedGateway) BuildPaymentURL(ctx context.Context, req PaymentRequest) (string, error) {
	if req.OrderRef == "" || req.Amount < 0 || req.ReturnURL == "" {
		return "", fmt.Errorf("%w: order ref, amount and return url are required", apperrors.ErrPaymentGateway)
	}

	values := url.Values{}
	values.Set("order_ref", req.OrderRef)
	values.Set("amount", strconv.FormatInt(req.Amount, 10))
	values.Set("return_url", req.ReturnURL)
	values.Set("expires_at", strconv.FormatInt(req.ExpiresAt.Unix(), 10))
	if req.Description != "" {
		values.Set("description", req.Description)
	}
	values.Set(signatureParam, g.Sign(values))

	u := *g.baseURL
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// ParseReturn 驗證簽章後轉換為付款結果
func (g *HostedGateway) ParseReturn(query url.Values) (*model.PaymentCallback, error) {
	signature := query.Get(signatureParam)
	if signature == "" || !hmac.Equal([]byte(signature), []byte(g.Sign(query))) {
		return nil, apperrors.ErrInvalidSignature
	}

	cb := &model.PaymentCallback{
		OrderRef:    query.Get("order_ref"),
		Code:        query.Get("code"),
		ExternalRef: query.Get("txn_ref"),
	}
	if cb.OrderRef == "" {
		return nil, fmt.Errorf("%w: missing order_ref", apperrors.ErrInvalidInput)
	}
	if amount := query.Get("amount"); amount != "" {
		v, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid amount", apperrors.ErrInvalidInput)
		}
		cb.Amount = v
	}
	if paidAt := query.Get("paid_at"); paidAt != "" {
		v, err := strconv.ParseInt(paidAt, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid paid_at", apperrors.ErrInvalidInput)
		}
		cb.PaidAt = time.Unix(v, 0).UTC()
	}
	cb.Success = cb.Code == SuccessCode && cb.ExternalRef != ""
	return cb, nil
}

// Sign 對排序後的參數 (不含 signature) 計算 HMAC-SHA256
func (g *HostedGateway) Sign(values url.Values) string {
	canonical := url.Values{}
	for k, v := range values {
		if k == signatureParam {
			continue
		}
		canonical[k] = v
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(canonical.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}
