package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"go-gin-seat-booking/pkg/logger"
	"net/url"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const (
	// Stripe Checkout Session 建立後至少需存活 30 分鐘
	StripeMinSessionLifetime = 30 * time.Minute
	// Stripe 付款截止早於結帳 session 到期，保留 webhook 送達的時間
	StripeCallbackGrace = 2 * time.Minute
)

type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type StripeGateway struct {
	config StripeGatewayConfig
	// newSession 測試時可替換
	newSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}

	stripe.Key = cfg.SecretKey

	return &StripeGateway{config: cfg, newSession: session.New}, nil
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) BuildPaymentURL(ctx context.Context, req PaymentRequest) (string, error) {
	successURL, err := withQuery(req.ReturnURL, "order_ref", req.OrderRef)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrPaymentGateway, err)
	}

	description := req.Description
	if description == "" {
		description = "Order " + req.OrderRef
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderRef),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(successURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.config.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	expiresAt, err := stripeExpiry(req.ExpiresAt, time.Now())
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrPaymentGateway, err)
	}
	params.ExpiresAt = stripe.Int64(expiresAt.Unix())
	params.AddMetadata("order_ref", req.OrderRef)
	params.Context = ctx

	sess, err := g.newSession(params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %w", apperrors.ErrPaymentGateway, err)
	}
	return sess.URL, nil
}

// ParseWebhook 驗證 Stripe-Signature 並轉換 checkout session 事件
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*model.PaymentCallback, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidSignature, err)
	}

	var success bool
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		success = true
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		success = false
	default:
		logger.WithComponent("payment").Info("ignore stripe event", zap.String("type", string(event.Type)))
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %w", apperrors.ErrInvalidInput, err)
	}
	// 延遲付款方式在 completed 時尚未入帳，等 async_payment_succeeded
	if event.Type == "checkout.session.completed" && sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, nil
	}

	orderRef := sess.ClientReferenceID
	if orderRef == "" {
		orderRef = sess.Metadata["order_ref"]
	}
	if orderRef == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no order reference", apperrors.ErrInvalidInput, sess.ID)
	}

	cb := &model.PaymentCallback{
		OrderRef:    orderRef,
		ExternalRef: sess.ID,
		Amount:      sess.AmountTotal,
		PaidAt:      time.Unix(event.Created, 0).UTC(),
		Success:     success,
	}
	if success {
		cb.Code = SuccessCode
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			cb.ExternalRef = sess.PaymentIntent.ID
		}
	} else {
		cb.Code = string(event.Type)
	}
	return cb, nil
}

// stripeExpiry 付款截止不得晚於結帳 session 到期，否則逾時付款無法結算
func stripeExpiry(sessionExpiry, now time.Time) (time.Time, error) {
	if sessionExpiry.IsZero() {
		return time.Time{}, errors.New("checkout expiry is required")
	}
	expiresAt := sessionExpiry.Add(-StripeCallbackGrace)
	if expiresAt.Before(now.Add(StripeMinSessionLifetime)) {
		return time.Time{}, fmt.Errorf("checkout expiry %s is shorter than stripe minimum %s plus grace %s",
			sessionExpiry.Format(time.RFC3339), StripeMinSessionLifetime, StripeCallbackGrace)
	}
	return expiresAt, nil
}

func withQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("invalid return url %q", rawURL)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
