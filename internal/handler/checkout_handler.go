package handler

import (
	"go-gin-seat-booking/internal/middleware"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkouts service.CheckoutService
	expiry    service.ExpiryService
}

func NewCheckoutHandler(checkouts service.CheckoutService, expiry service.ExpiryService) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		expiry:    expiry,
	}
}

func (h *CheckoutHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("checkout", h.BeginCheckout)
	router.GET("checkout/:orderRef", h.GetCheckout)
	router.POST("checkout/:orderRef/cancel", h.CancelCheckout)
}

func (h *CheckoutHandler) BeginCheckout(c *gin.Context) {
	var req model.BeginCheckoutRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	req.ActorID = middleware.ActorID(c)

	resp, err := h.checkouts.Begin(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "BeginCheckout")
		return
	}

	handleSuccess(c, resp, http.StatusCreated)
}

func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	session, err := h.checkouts.Find(c.Request.Context(), c.Param("orderRef"), middleware.ActorID(c))
	if err != nil {
		handleError(c, err, "GetCheckout")
		return
	}

	handleSuccess(c, session, http.StatusOK)
}

func (h *CheckoutHandler) CancelCheckout(c *gin.Context) {
	result, err := h.expiry.Cancel(c.Request.Context(), c.Param("orderRef"), middleware.ActorID(c), middleware.IsStaff(c))
	if err != nil {
		handleError(c, err, "CancelCheckout")
		return
	}

	handleSuccess(c, result, http.StatusOK)
}
