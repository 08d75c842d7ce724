package handler

import (
	"errors"
	"net/http"

	apperrors "go-gin-seat-booking/pkg/app_errors"
	"go-gin-seat-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

// handleError 將 service 錯誤對應到 HTTP 狀態碼
func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	var holdConflict *apperrors.HoldConflictError
	var seatConflict *apperrors.SeatConflictError
	switch {
	case errors.As(err, &holdConflict):
		log.Warn("Seat hold conflict")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Seats are held by someone else",
			"seats": holdConflict.Seats,
		})
	case errors.As(err, &seatConflict):
		log.Warn("Seats no longer available")
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Seats no longer available",
			"lost_seats": seatConflict.Seats,
		})
	case errors.Is(err, apperrors.ErrHoldConflict):
		log.Warn("Seat hold conflict")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Seats are held by someone else",
		})
	case errors.Is(err, apperrors.ErrPaymentRefReused):
		log.Error("Payment reference reused")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Payment reference already used by another order",
		})
	case errors.Is(err, apperrors.ErrOrderRefExists):
		log.Warn("Order reference exists")
		c.JSON(http.StatusConflict, gin.H{
			"error": "Order reference already exists",
		})
	case errors.Is(err, apperrors.ErrSessionNotFound):
		log.Warn("Checkout session not found")
		c.JSON(http.StatusGone, gin.H{
			"error": "Checkout session expired or not found",
		})
	case errors.Is(err, apperrors.ErrHoldNotFound):
		log.Warn("Hold not found")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Seat hold not found",
		})
	case errors.Is(err, apperrors.ErrNotOwner):
		log.Warn("Not owner")
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Not the owner",
		})
	case errors.Is(err, apperrors.ErrPriceMismatch):
		log.Warn("Price mismatch")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Price does not match catalog",
		})
	case errors.Is(err, apperrors.ErrInvalidSignature):
		log.Warn("Invalid callback signature")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid signature",
		})
	case errors.Is(err, apperrors.ErrInvalidInput):
		log.Warn("Invalid input")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input",
		})
	case errors.Is(err, apperrors.ErrUnauthorized):
		log.Warn("Unauthorized")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthorized",
		})
	case errors.Is(err, apperrors.ErrForbidden):
		log.Warn("Forbidden")
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Forbidden",
		})
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		log.Error("Store unavailable")
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
	case errors.Is(err, apperrors.ErrPaymentGateway):
		log.Error("Payment gateway error")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Payment gateway unavailable",
		})
	case errors.Is(err, apperrors.ErrPersistenceFailure):
		log.Error("Persistence failure")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Persistence failure",
		})
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}

func handleSuccess(c *gin.Context, data interface{}, statusCode int) {
	if data != nil {
		c.JSON(statusCode, data)
	} else {
		c.Status(statusCode)
	}
}
