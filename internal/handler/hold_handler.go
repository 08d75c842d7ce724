package handler

import (
	"go-gin-seat-booking/internal/middleware"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/service"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HoldHandler struct {
	service service.HoldService
}

func NewHoldHandler(service service.HoldService) *HoldHandler {
	return &HoldHandler{service: service}
}

type holdTTLQuery struct {
	TTLSeconds int `form:"ttl_seconds" binding:"omitempty,min=1,max=3600"`
}

func (h *HoldHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("showtimes/:showtimeId/holds", h.AcquireHolds)
	router.GET("showtimes/:showtimeId/holds/:seatId", h.GetHold)
	router.PUT("showtimes/:showtimeId/holds/:seatId", h.RefreshHold)
	router.DELETE("showtimes/:showtimeId/holds/:seatId", h.ReleaseHold)
}

func (h *HoldHandler) AcquireHolds(c *gin.Context) {
	var req model.AcquireHoldsRequest
	if err := BindJson(c, &req); err != nil {
		return
	}

	resp, err := h.service.AcquireSeats(
		c.Request.Context(),
		c.Param("showtimeId"),
		req.SeatIDs,
		middleware.ActorID(c),
		time.Duration(req.TTLSeconds)*time.Second,
	)
	if err != nil {
		handleError(c, err, "AcquireHolds")
		return
	}

	handleSuccess(c, resp, http.StatusCreated)
}

func (h *HoldHandler) GetHold(c *gin.Context) {
	showtimeID := c.Param("showtimeId")
	seatID := c.Param("seatId")

	holder, err := h.service.Holder(c.Request.Context(), showtimeID, seatID)
	if err != nil {
		handleError(c, err, "GetHold")
		return
	}

	handleSuccess(c, model.HoldStatusResponse{
		ShowtimeID: showtimeID,
		SeatID:     seatID,
		Held:       holder != "",
		Mine:       holder != "" && holder == middleware.ActorID(c),
	}, http.StatusOK)
}

func (h *HoldHandler) RefreshHold(c *gin.Context) {
	var query holdTTLQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}

	result, err := h.service.Refresh(
		c.Request.Context(),
		c.Param("showtimeId"),
		c.Param("seatId"),
		middleware.ActorID(c),
		time.Duration(query.TTLSeconds)*time.Second,
	)
	if err != nil {
		handleError(c, err, "RefreshHold")
		return
	}

	switch result {
	case model.HoldRefreshed:
		handleSuccess(c, gin.H{"result": result}, http.StatusOK)
	case model.HoldNotOwner:
		handleError(c, apperrors.ErrNotOwner, "RefreshHold")
	default:
		handleError(c, apperrors.ErrHoldNotFound, "RefreshHold")
	}
}

func (h *HoldHandler) ReleaseHold(c *gin.Context) {
	result, err := h.service.Release(
		c.Request.Context(),
		c.Param("showtimeId"),
		c.Param("seatId"),
		middleware.ActorID(c),
	)
	if err != nil {
		handleError(c, err, "ReleaseHold")
		return
	}

	// 不存在的 hold 視為已釋放
	if result == model.HoldNotOwner {
		handleError(c, apperrors.ErrNotOwner, "ReleaseHold")
		return
	}
	handleSuccess(c, nil, http.StatusNoContent)
}
