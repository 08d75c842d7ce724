package handler

import (
	"go-gin-seat-booking/internal/middleware"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CounterHandler struct {
	settlement service.SettlementService
}

func NewCounterHandler(settlement service.SettlementService) *CounterHandler {
	return &CounterHandler{settlement: settlement}
}

// RegisterRoutes 路由需先經過 Identity、RequireStaff 與 Idempotency
func (h *CounterHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("counter/sales", h.CreateSale)
}

func (h *CounterHandler) CreateSale(c *gin.Context) {
	var req model.CounterSaleRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	result, err := h.settlement.SettleCash(c.Request.Context(), req, middleware.ActorID(c))
	if err != nil {
		handleError(c, err, "CreateSale")
		return
	}

	switch result.Outcome {
	case model.OutcomeSettled:
		handleSuccess(c, result, http.StatusCreated)
	case model.OutcomeConflict:
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Seats no longer available",
			"lost_seats": result.LostSeats,
		})
	default:
		handleSuccess(c, result, http.StatusOK)
	}
}
