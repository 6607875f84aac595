package payment

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// LocalGateway is an in-process provider for development and tests.
// Sessions "pay" when a signed checkout.session.completed webhook is
// delivered for them.
type LocalGateway struct {
	mu       sync.Mutex
	sessions map[string]uint64 // session id -> booking id
	refunded map[string]bool

	// Fail, when set, makes every call return it wrapped as a gateway error.
	Fail error
}

func NewLocalGateway() *LocalGateway {
	return &LocalGateway{sessions: map[string]uint64{}, refunded: map[string]bool{}}
}

func (g *LocalGateway) CreateCheckoutSession(_ context.Context, b model.Booking, successURL, _ string) (Session, error) {
	const op = "payment.create_checkout_session"
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return Session{}, gatewayErr(op, g.Fail)
	}
	id := "cs_local_" + uuid.NewString()
	g.sessions[id] = b.ID

	u, err := url.Parse(successURL)
	if err != nil {
		return Session{}, gatewayErr(op, err)
	}
	q := u.Query()
	q.Set("session_id", id)
	u.RawQuery = q.Encode()
	return Session{ID: id, URL: u.String()}, nil
}

func (g *LocalGateway) Refund(_ context.Context, sessionID string) error {
	const op = "payment.refund"
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return gatewayErr(op, g.Fail)
	}
	if _, ok := g.sessions[sessionID]; !ok {
		return gatewayMsg(op, "unknown session %s", sessionID)
	}
	if g.refunded[sessionID] {
		return gatewayMsg(op, "session %s already refunded", sessionID)
	}
	g.refunded[sessionID] = true
	return nil
}

// Refunded reports whether a refund was issued for the session.
func (g *LocalGateway) Refunded(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[sessionID]
}
