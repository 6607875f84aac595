package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/hotel-booking/internal/apperr"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on every delivery.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds the age of a signed delivery.
const DefaultTolerance = 5 * time.Minute

var ErrSignature = fmt.Errorf("webhook signature: %w", apperr.ErrInvalidInput)

// WebhookVerifier authenticates webhook payloads with the shared secret.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

type webhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// Verify checks the signature header against payload and decodes the
// event.  Any v1 signature in the header may match.
func (v *WebhookVerifier) Verify(payload []byte, header string) (Event, error) {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return Event{}, err
	}
	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return Event{}, fmt.Errorf("%w: timestamp outside tolerance", ErrSignature)
	}
	expected := computeSignature(v.secret, ts, payload)
	matched := false
	for _, sig := range sigs {
		decoded, err := hex.DecodeString(sig)
		if err != nil || len(decoded) != len(expected) {
			continue
		}
		if hmac.Equal(decoded, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return Event{}, fmt.Errorf("%w: no matching v1 signature", ErrSignature)
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", errors.Join(apperr.ErrInvalidInput, err))
	}
	if body.Type == "" {
		return Event{}, fmt.Errorf("decode event: %w", apperr.ErrInvalidInput)
	}
	return Event{ID: body.ID, Type: body.Type, SessionID: body.Data.Object.ID}, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		ts   int64
		sigs []string
	)
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrSignature)
			}
			ts = n
		case "v1":
			sigs = append(sigs, val)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: missing timestamp or signature", ErrSignature)
	}
	return ts, sigs, nil
}

func computeSignature(secret []byte, ts int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload builds a signature header for payload at t.  Used by the
// local gateway tooling and tests.
func SignPayload(secret string, payload []byte, t time.Time) string {
	ts := t.Unix()
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(computeSignature([]byte(secret), ts, payload))
}
