package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/payment"
)

// maxWebhookBody caps the bytes read from a provider callback.
const maxWebhookBody = 1 << 16

// WebhookHandler receives payment provider callbacks.  It answers 2xx for
// anything the provider must not redeliver and 5xx when a retry may help.
type WebhookHandler struct {
	svc      *booking.Service
	verifier *payment.WebhookVerifier
	log      *zap.Logger
}

func NewWebhookHandler(svc *booking.Service, verifier *payment.WebhookVerifier, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, verifier: verifier, log: log.Named("webhook")}
}

// Payment handles POST /v1/webhooks/payment.
func (h *WebhookHandler) Payment(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	ev, err := h.verifier.Verify(payload, c.Request().Header.Get(payment.SignatureHeader))
	if err != nil {
		h.log.Warn("webhook rejected", zap.Error(err))
		return badRequest(c, err.Error())
	}
	err = h.svc.CapturePayment(c.Request().Context(), ev)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	case errors.Is(err, apperr.ErrInvalidState):
		// paid after cancel or expiry; CapturePayment logged it for refund
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
	}
	return respondError(c, h.log, err)
}
