package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/model"
)

func booking() model.Booking {
	return model.Booking{
		ID: 17, RoomsCount: 2,
		CheckIn:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.RequireFromString("483.005"),
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(48301), MinorUnits(decimal.RequireFromString("483.005")))
	assert.Equal(t, int64(10000), MinorUnits(decimal.NewFromInt(100)))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}

func TestStripeCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "checkout-17", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "48301", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "eur", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "17", r.PostForm.Get("metadata[booking_id]"))
		assert.Equal(t, "https://app.test/ok", r.PostForm.Get("success_url"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_123","url":"https://pay.test/cs_123"}`))
	}))
	defer srv.Close()

	c := NewStripeClient(srv.URL, "sk_test", "eur", nil)
	s, err := c.CreateCheckoutSession(context.Background(), booking(), "https://app.test/ok", "https://app.test/cancel")
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "cs_123", URL: "https://pay.test/cs_123"}, s)
}

func TestStripeErrorIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount too small"}}`))
	}))
	defer srv.Close()

	c := NewStripeClient(srv.URL, "sk_test", "usd", nil)
	_, err := c.CreateCheckoutSession(context.Background(), booking(), "https://app.test/ok", "https://app.test/cancel")
	require.ErrorIs(t, err, apperr.ErrPaymentGateway)
	assert.Contains(t, err.Error(), "Amount too small")
}

func TestStripeRefundResolvesPaymentIntent(t *testing.T) {
	var refunded string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/checkout/sessions/cs_9", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_9","payment_intent":"pi_9","status":"complete"}`))
	})
	mux.HandleFunc("/v1/refunds", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		refunded = r.PostForm.Get("payment_intent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","status":"succeeded"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewStripeClient(srv.URL, "sk_test", "usd", nil)
	require.NoError(t, c.Refund(context.Background(), "cs_9"))
	assert.Equal(t, "pi_9", refunded)
}

func TestLocalGateway(t *testing.T) {
	g := NewLocalGateway()
	ctx := context.Background()
	s, err := g.CreateCheckoutSession(ctx, booking(), "https://app.test/ok?x=1", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.ID, "cs_local_"))
	assert.Contains(t, s.URL, "session_id="+s.ID)
	assert.Contains(t, s.URL, "x=1")

	require.NoError(t, g.Refund(ctx, s.ID))
	assert.True(t, g.Refunded(s.ID))
	assert.ErrorIs(t, g.Refund(ctx, s.ID), apperr.ErrPaymentGateway)
	assert.ErrorIs(t, g.Refund(ctx, "cs_unknown"), apperr.ErrPaymentGateway)

	g.Fail = errors.New("provider down")
	_, err = g.CreateCheckoutSession(ctx, booking(), "https://app.test/ok", "")
	assert.ErrorIs(t, err, apperr.ErrPaymentGateway)
}

func TestWebhookVerify(t *testing.T) {
	now := time.Unix(1_780_000_000, 0)
	v := NewWebhookVerifier("whsec", 0)
	v.now = func() time.Time { return now }

	payload, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": EventCheckoutCompleted,
		"data": map[string]any{"object": map[string]any{"id": "cs_42"}},
	})
	require.NoError(t, err)

	ev, err := v.Verify(payload, SignPayload("whsec", payload, now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, Event{ID: "evt_1", Type: EventCheckoutCompleted, SessionID: "cs_42"}, ev)

	cases := map[string]string{
		"wrong secret":   SignPayload("other", payload, now),
		"too old":        SignPayload("whsec", payload, now.Add(-6*time.Minute)),
		"missing header": "",
		"no v1":          "t=1780000000",
		"garbage sig":    "t=1780000000,v1=zz",
		"bad timestamp":  "t=abc,v1=00",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(payload, header)
			assert.ErrorIs(t, err, ErrSignature)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}

	// a tampered body fails even with a fresh signature header
	_, err = v.Verify(append(payload, ' '), SignPayload("whsec", payload, now))
	assert.ErrorIs(t, err, ErrSignature)
}
