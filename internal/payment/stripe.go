package payment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// DefaultStripeURL is the production API base.
const DefaultStripeURL = "https://api.stripe.com"

// StripeClient implements Gateway against the Stripe REST API (or any
// server speaking the same form-encoded protocol).
type StripeClient struct {
	httpClient *resty.Client
	currency   string
	logger     *zap.Logger
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
}

type stripeRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NewStripeClient returns a client authenticating with apiKey.
func NewStripeClient(baseURL, apiKey, currency string, logger *zap.Logger) *StripeClient {
	if baseURL == "" {
		baseURL = DefaultStripeURL
	}
	if currency == "" {
		currency = "usd"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json")

	return &StripeClient{httpClient: client, currency: currency, logger: logger.Named("stripe")}
}

func (c *StripeClient) failure(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Error("payment API call failed", zap.String("op", op), zap.Error(err))
		return gatewayErr(op, err)
	}
	msg := resp.Status()
	if e, ok := resp.Error().(*stripeError); ok && e.Error.Message != "" {
		msg = e.Error.Message
	}
	c.logger.Error("payment API returned error",
		zap.String("op", op),
		zap.Int("status_code", resp.StatusCode()),
		zap.String("msg", msg),
	)
	return gatewayMsg(op, "%s (status: %d)", msg, resp.StatusCode())
}

// CreateCheckoutSession opens a one-line-item hosted checkout for the
// booking amount.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, b model.Booking, successURL, cancelURL string) (Session, error) {
	const op = "payment.create_checkout_session"
	bookingID := strconv.FormatUint(b.ID, 10)
	form := map[string]string{
		"mode":                 "payment",
		"success_url":          successURL,
		"cancel_url":           cancelURL,
		"client_reference_id":  bookingID,
		"metadata[booking_id]": bookingID,
	}
	item := "line_items[0]"
	form[item+"[quantity]"] = "1"
	form[item+"[price_data][currency]"] = c.currency
	form[item+"[price_data][unit_amount]"] = strconv.FormatInt(MinorUnits(b.Amount), 10)
	form[item+"[price_data][product_data][name]"] = fmt.Sprintf("Booking #%d", b.ID)
	form[item+"[price_data][product_data][description]"] = fmt.Sprintf("%d room(s), %s to %s",
		b.RoomsCount, b.CheckIn.Format(model.DateLayout), b.CheckOut.Format(model.DateLayout))

	var session stripeSession
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "checkout-"+bookingID).
		SetFormData(form).
		SetResult(&session).
		SetError(&stripeError{}).
		Post("/v1/checkout/sessions")
	if err != nil || resp.IsError() {
		return Session{}, c.failure(op, resp, err)
	}
	if session.ID == "" || session.URL == "" {
		return Session{}, gatewayMsg(op, "session response without id or url")
	}
	c.logger.Info("checkout session created", zap.Uint64("booking_id", b.ID), zap.String("session_id", session.ID))
	return Session{ID: session.ID, URL: session.URL}, nil
}

// Refund resolves the session's payment intent and refunds it in full.
func (c *StripeClient) Refund(ctx context.Context, sessionID string) error {
	const op = "payment.refund"
	var session stripeSession
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&session).
		SetError(&stripeError{}).
		Get("/v1/checkout/sessions/" + sessionID)
	if err != nil || resp.IsError() {
		return c.failure(op, resp, err)
	}
	if session.PaymentIntent == "" {
		return gatewayMsg(op, "session %s has no payment intent", sessionID)
	}

	var refund stripeRefund
	resp, err = c.httpClient.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "refund-"+sessionID).
		SetFormData(map[string]string{"payment_intent": session.PaymentIntent}).
		SetResult(&refund).
		SetError(&stripeError{}).
		Post("/v1/refunds")
	if err != nil || resp.IsError() {
		return c.failure(op, resp, err)
	}
	c.logger.Info("refund created",
		zap.String("session_id", sessionID),
		zap.String("refund_id", refund.ID),
		zap.String("status", refund.Status),
	)
	return nil
}
