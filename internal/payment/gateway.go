// Package payment talks to the external payment provider: it opens checkout
// sessions, issues refunds and authenticates webhook deliveries.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
)

// EventCheckoutCompleted is the only webhook event that captures a payment.
const EventCheckoutCompleted = "checkout.session.completed"

// Session is an open checkout session.  URL is where the guest pays.
type Session struct {
	ID  string
	URL string
}

// Event is an authenticated webhook delivery.
type Event struct {
	ID        string
	Type      string
	SessionID string
}

// Gateway is the provider contract used by the booking service.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, b model.Booking, successURL, cancelURL string) (Session, error)
	// Refund returns the full amount captured through the session.
	Refund(ctx context.Context, sessionID string) error
}

// MinorUnits converts an amount to integer cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return pricing.Round(amount).Shift(2).IntPart()
}

func gatewayErr(op string, err error) error {
	return apperr.Wrap(op, apperr.ErrPaymentGateway, err)
}

func gatewayMsg(op, format string, args ...any) error {
	return apperr.New(op, apperr.ErrPaymentGateway, fmt.Sprintf(format, args...))
}
