package handler_test

import (
	"go-gin-seat-booking/internal/handler"
	"go-gin-seat-booking/internal/middleware"
	"go-gin-seat-booking/internal/model"
	"go-gin-seat-booking/internal/service/mocks"
	apperrors "go-gin-seat-booking/pkg/app_errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupHoldTestRouter(mockService *mocks.HoldServiceMock) *gin.Engine {
	router, api := newTestRouter()
	api.Use(middleware.Identity(middleware.IdentityConfig{}))
	handler.NewHoldHandler(mockService).RegisterRoutes(api)
	return router
}

func TestAcquireHolds(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewHoldServiceMock()
		router := setupHoldTestRouter(mockService)

		mockService.On("AcquireSeats", mock.Anything, "S1", []string{"A1", "A2"}, "actor-x", 120*time.Second).
			Return(&model.HoldsResponse{ShowtimeID: "S1", SeatIDs: []string{"A1", "A2"}}, nil).Once()

		req := createJSONHTTPRequest("POST", "/api/v1/showtimes/S1/holds", model.AcquireHoldsRequest{
			SeatIDs:    []string{"A1", "A2"},
			TTLSeconds: 120,
		})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asActor(req, "actor-x", ""))

		assert.Equal(t, http.StatusCreated, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - HoldConflict", func(t *testing.T) {
		mockService := mocks.NewHoldServiceMock()
		router := setupHoldTestRouter(mockService)

		mockService.On("AcquireSeats", mock.Anything, "S1", []string{"A1"}, "actor-x", time.Duration(0)).
			Return(nil, &apperrors.HoldConflictError{ShowtimeID: "S1", Seats: []string{"A1"}}).Once()

		req := createJSONHTTPRequest("POST", "/api/v1/showtimes/S1/holds", model.AcquireHoldsRequest{SeatIDs: []string{"A1"}})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asActor(req, "actor-x", ""))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, []interface{}{"A1"}, decodeBody(w.Body)["seats"])
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - StoreUnavailable", func(t *testing.T) {
		mockService := mocks.NewHoldServiceMock()
		router := setupHoldTestRouter(mockService)

		mockService.On("AcquireSeats", mock.Anything, "S1", []string{"A1"}, "actor-x", time.Duration(0)).
			Return(nil, apperrors.ErrStoreUnavailable).Once()

		req := createJSONHTTPRequest("POST", "/api/v1/showtimes/S1/holds", model.AcquireHoldsRequest{SeatIDs: []string{"A1"}})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asActor(req, "actor-x", ""))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("Failed - BindingError", func(t *testing.T) {
		mockService := mocks.NewHoldServiceMock()
		router := setupHoldTestRouter(mockService)

		req := createJSONHTTPRequest("POST", "/api/v1/showtimes/S1/holds", InvalidJSON)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, asActor(req, "actor-x", ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "AcquireSeats")
	})

	t.Run("Failed - MissingActor", func(t *testing.T) {
		mockService := mocks.NewHoldServiceMock()
		router := setupHoldTestRouter(mockService)

		req := createJSONHTTPRequest("POST", "/api/v1/showtimes/S1/holds", model.AcquireHoldsRequest{SeatIDs: []string{"A1"}})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "AcquireSeats")
	})
}

func TestGetHold(t *testing.T) {
	mockService := mocks.NewHoldServiceMock()
	router := setupHoldTestRouter(mockService)

	mockService.On("Holder", mock.Anything, "S1", "A1").Return("actor-x", nil)

	req := httptest.NewRequest("GET", "/api/v1/showtimes/S1/holds/A1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asActor(req, "actor-x", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"showtime_id":"S1","seat_id":"A1","held":true,"mine":true}`, w.Body.String())

	req = httptest.NewRequest("GET", "/api/v1/showtimes/S1/holds/A1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, asActor(req, "actor-y", ""))
	assert.JSONEq(t, `{"showtime_id":"S1","seat_id":"A1","held":true,"mine":false}`, w.Body.String())
}

func TestRefreshHold(t *testing.T) {
	tests := []struct {
		name   string
		result model.HoldResult
		code   int
	}{
		{"Success", model.HoldRefreshed, http.StatusOK},
		{"Failed - NotOwner", model.HoldNotOwner, http.StatusForbidden},
		{"Failed - NotFound", model.HoldNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := mocks.NewHoldServiceMock()
			router := setupHoldTestRouter(mockService)

			mockService.On("Refresh", mock.Anything, "S1", "A1", "actor-x", 60*time.Second).Return(tt.result, nil).Once()

			req := httptest.NewRequest("PUT", "/api/v1/showtimes/S1/holds/A1?ttl_seconds=60", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, asActor(req, "actor-x", ""))

			assert.Equal(t, tt.code, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestReleaseHold(t *testing.T) {
	tests := []struct {
		name   string
		result model.HoldResult
		code   int
	}{
		{"Success", model.HoldReleased, http.StatusNoContent},
		{"Success - AlreadyGone", model.HoldNotFound, http.StatusNoContent},
		{"Failed - NotOwner", model.HoldNotOwner, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := mocks.NewHoldServiceMock()
			router := setupHoldTestRouter(mockService)

			mockService.On("Release", mock.Anything, "S1", "A1", "actor-x").Return(tt.result, nil).Once()

			req := httptest.NewRequest("DELETE", "/api/v1/showtimes/S1/holds/A1", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, asActor(req, "actor-x", ""))

			assert.Equal(t, tt.code, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}
