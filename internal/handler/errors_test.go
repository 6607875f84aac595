package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{repository.ErrNotFound, http.StatusNotFound, "not_found"},
		{apperr.New("op", apperr.ErrUnauthorized, "x"), http.StatusUnauthorized, "unauthorized"},
		{apperr.New("op", apperr.ErrForbidden, "x"), http.StatusForbidden, "forbidden"},
		{apperr.New("op", apperr.ErrExpiredBooking, "x"), http.StatusGone, "booking_expired"},
		{apperr.New("op", apperr.ErrInsufficientInventory, "x"), http.StatusConflict, "insufficient_inventory"},
		{apperr.New("op", apperr.ErrInvalidState, "x"), http.StatusConflict, "invalid_state"},
		{fmt.Errorf("wrapped: %w", apperr.ErrPaymentGateway), http.StatusBadGateway, "payment_gateway_error"},
		{apperr.New("op", apperr.ErrInvalidInput, "x"), http.StatusBadRequest, "invalid_input"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := statusOf(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRespondError(t *testing.T) {
	e := echo.New()
	render := func(err error) (int, map[string]any) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, respondError(c, zap.NewNop(), err))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := render(apperr.New("booking.cancel", apperr.ErrInvalidState, "not confirmed").WithBooking(42))
	assert.Equal(t, http.StatusConflict, code)
	assert.EqualValues(t, 42, body["booking_id"])
	assert.Contains(t, body["message"], "not confirmed")

	code, body = render(errors.New("dial tcp 10.0.0.1:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", body["message"])
	assert.Nil(t, body["booking_id"])
}
