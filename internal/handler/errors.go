package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
)

// errorKinds maps each error kind to its HTTP status and a stable code
// clients can switch on.  Order matters: the first match wins.
var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{apperr.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperr.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperr.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperr.ErrExpiredBooking, http.StatusGone, "booking_expired"},
	{apperr.ErrInsufficientInventory, http.StatusConflict, "insufficient_inventory"},
	{apperr.ErrOversell, http.StatusConflict, "insufficient_inventory"},
	{apperr.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{apperr.ErrPaymentGateway, http.StatusBadGateway, "payment_gateway_error"},
	{apperr.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// statusOf returns the HTTP status and code for err.
func statusOf(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes err as JSON.  Server errors are logged and their
// message hidden.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status, code := statusOf(err)
	body := echo.Map{"error": code, "message": err.Error()}
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			body["message"] = "internal server error"
		}
	}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.BookingID != 0 {
		body["booking_id"] = ae.BookingID
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input", "message": msg})
}
