package handler

import (
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/payment"
	"go-gin-seat-booking/internal/service"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Stripe webhook 內容上限
const maxWebhookBytes = 64 << 10

type PaymentHandler struct {
	payments service.PaymentService
	returns  payment.ReturnParser
	webhooks payment.WebhookParser
}

// NewPaymentHandler returns 或 webhooks 為 nil 時對應路由不註冊
func NewPaymentHandler(payments service.PaymentService, returns payment.ReturnParser, webhooks payment.WebhookParser) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		returns:  returns,
		webhooks: webhooks,
	}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	if h.returns != nil {
		router.GET("payments/return", h.HandleReturn)
	}
	if h.webhooks != nil {
		router.POST("payments/stripe/webhook", h.HandleStripeWebhook)
	}
}

func (h *PaymentHandler) HandleReturn(c *gin.Context) {
	cb, err := h.returns.ParseReturn(c.Request.URL.Query())
	if err != nil {
		handleError(c, err, "HandleReturn")
		return
	}
	h.dispatch(c, cb, "HandleReturn")
}

func (h *PaymentHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	cb, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		handleError(c, err, "HandleStripeWebhook")
		return
	}
	if cb == nil {
		handleSuccess(c, gin.H{"received": true}, http.StatusOK)
		return
	}
	h.dispatch(c, cb, "HandleStripeWebhook")
}

// dispatch 結算結果 (含 conflict / expired) 一律回 200，只有可重試的錯誤回 5xx
func (h *PaymentHandler) dispatch(c *gin.Context, cb *model.PaymentCallback, operation string) {
	result, err := h.payments.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		handleError(c, err, operation)
		return
	}
	handleSuccess(c, result, http.StatusOK)
}
