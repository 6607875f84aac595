// Package booking owns the booking lifecycle:
//
//	RESERVED -> GUESTS_ADDED -> PAYMENT_PENDING -> CONFIRMED -> CANCELLED
//
// Every transition takes the caller's principal explicitly.  A pre-payment
// booking older than the TTL is treated as expired by the guards whatever
// its stored status; the sweep in janitor.go later releases its reserved
// rooms and stores EXPIRED.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/metrics"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/payment"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/reservation"
)

// Publisher receives booking events after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.BookingEvent) error { return nil }

// Config holds the lifecycle settings.
type Config struct {
	TTL         time.Duration // reservation lifetime, default 10 minutes
	FrontendURL string        // base of the payment success and failure pages
	SweepGrace  time.Duration // extra age before the sweep releases a booking
	SweepBatch  int           // bookings expired per sweep page
}

// Service implements the booking operations.
type Service struct {
	store   repository.Store
	coord   *reservation.Coordinator
	gateway payment.Gateway
	events  Publisher
	log     *zap.Logger
	now     func() time.Time
	cfg     Config
}

// Option customizes a Service.
type Option func(*Service)

// WithClock sets the time source used for expiry and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sends committed transitions to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(store repository.Store, coord *reservation.Coordinator, gateway payment.Gateway, cfg Config, log *zap.Logger, opts ...Option) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = model.DefaultBookingTTL
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:   store,
		coord:   coord,
		gateway: gateway,
		events:  nopPublisher{},
		log:     log.Named("booking"),
		now:     time.Now,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitRequest describes a new booking.  Range is [check_in, check_out].
type InitRequest struct {
	HotelID    uint64
	RoomID     uint64
	Range      model.DateRange
	RoomsCount int
}

func bookingFields(b model.Booking) []zap.Field {
	return []zap.Field{
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("room_id", b.RoomID),
		zap.String("start", b.CheckIn.Format(model.DateLayout)),
		zap.String("end", b.CheckOut.Format(model.DateLayout)),
		zap.String("status", string(b.Status)),
	}
}

// Initialize reserves the rooms and creates the booking in RESERVED, both
// in one transaction.
func (s *Service) Initialize(ctx context.Context, p model.Principal, req InitRequest) (model.Booking, error) {
	const op = "booking.initialize"
	if p.UserID == 0 {
		return model.Booking{}, apperr.New(op, apperr.ErrUnauthorized, "no principal")
	}
	if req.RoomsCount < 1 {
		return model.Booking{}, apperr.New(op, apperr.ErrInvalidInput, "rooms_count must be at least 1")
	}
	if !req.Range.End.After(req.Range.Start) {
		return model.Booking{}, apperr.New(op, apperr.ErrInvalidInput, "check_out must be after check_in")
	}
	if req.Range.Days() > model.MaxRangeDays {
		return model.Booking{}, apperr.New(op, apperr.ErrInvalidInput, fmt.Sprintf("stay longer than %d days", model.MaxRangeDays))
	}
	now := s.now().UTC()
	if req.Range.Start.Before(model.Day(now)) {
		return model.Booking{}, apperr.New(op, apperr.ErrInvalidInput, "check_in is in the past")
	}

	hotel, err := s.store.GetHotel(ctx, req.HotelID)
	if err != nil {
		return model.Booking{}, err
	}
	if !hotel.Active {
		return model.Booking{}, apperr.New(op, apperr.ErrInvalidState, fmt.Sprintf("hotel %d is not active", hotel.ID))
	}
	room, err := s.store.GetRoom(ctx, req.RoomID)
	if err != nil {
		return model.Booking{}, err
	}
	if room.HotelID != hotel.ID {
		return model.Booking{}, apperr.New(op, apperr.ErrNotFound, fmt.Sprintf("room %d not in hotel %d", room.ID, hotel.ID))
	}

	var b model.Booking
	err = s.coord.Atomically(ctx, "initiate", func(ctx context.Context, tx repository.Tx) error {
		amount, err := s.coord.Initiate(ctx, tx, room.ID, req.Range, req.RoomsCount)
		if err != nil {
			return err
		}
		b = model.Booking{
			HotelID:    hotel.ID,
			RoomID:     room.ID,
			UserID:     p.UserID,
			RoomsCount: req.RoomsCount,
			CheckIn:    req.Range.Start,
			CheckOut:   req.Range.End,
			Status:     model.StatusReserved,
			Amount:     pricing.Round(amount),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.CreateBooking(ctx, &b)
	})
	if err != nil {
		return model.Booking{}, err
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	s.log.Info("booking reserved", append(bookingFields(b), zap.String("amount", b.Amount.StringFixed(2)))...)
	return b, nil
}

// guard checks ownership and expiry; callers check status.
func (s *Service) guard(op string, p model.Principal, b model.Booking) error {
	if b.UserID != p.UserID {
		return apperr.New(op, apperr.ErrForbidden, "booking belongs to another user").WithBooking(b.ID)
	}
	if model.IsExpired(b, s.now(), s.cfg.TTL) {
		return apperr.New(op, apperr.ErrExpiredBooking, "booking has expired").WithBooking(b.ID)
	}
	return nil
}

func validGuests(guests []model.Guest) error {
	if len(guests) == 0 {
		return errors.New("at least one guest is required")
	}
	for i, g := range guests {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("guest %d: name is required", i)
		}
		if g.Age < 0 || g.Age > 150 {
			return fmt.Errorf("guest %d: age out of range", i)
		}
		if !g.Gender.Valid() {
			return fmt.Errorf("guest %d: unknown gender %q", i, g.Gender)
		}
	}
	return nil
}

// AddGuests attaches the guest list to a RESERVED booking.
func (s *Service) AddGuests(ctx context.Context, p model.Principal, bookingID uint64, guests []model.Guest) (model.Booking, error) {
	const op = "booking.add_guests"
	if err := validGuests(guests); err != nil {
		return model.Booking{}, apperr.Wrap(op, apperr.ErrInvalidInput, err).WithBooking(bookingID)
	}
	var b model.Booking
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if b, err = tx.LockBooking(ctx, bookingID); err != nil {
			return err
		}
		if err := s.guard(op, p, b); err != nil {
			return err
		}
		if b.Status != model.StatusReserved {
			return apperr.New(op, apperr.ErrInvalidState, "guests can only be added to a RESERVED booking, status is "+string(b.Status)).WithBooking(b.ID)
		}
		owned := make([]model.Guest, len(guests))
		for i, g := range guests {
			g.ID = 0
			g.UserID = p.UserID
			g.Name = strings.TrimSpace(g.Name)
			owned[i] = g
		}
		if err := tx.AttachGuests(ctx, b.ID, owned); err != nil {
			return err
		}
		b.Guests = append(b.Guests, owned...)
		b.Status = model.StatusGuestsAdded
		b.UpdatedAt = s.now().UTC()
		return tx.UpdateBooking(ctx, &b)
	})
	if err != nil {
		return model.Booking{}, err
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	s.log.Info("guests added", append(bookingFields(b), zap.Int("guests", len(guests)))...)
	return b, nil
}

// InitiatePayment opens a checkout session and moves the booking to
// PAYMENT_PENDING.  Any pre-payment status is accepted, so a guest may
// retry after abandoning a checkout page.  The gateway is called outside
// the transaction; a gateway failure leaves the booking untouched.
func (s *Service) InitiatePayment(ctx context.Context, p model.Principal, bookingID uint64) (string, error) {
	const op = "booking.initiate_payment"
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if err := s.guard(op, p, b); err != nil {
		return "", err
	}
	if !b.Status.PrePayment() {
		return "", apperr.New(op, apperr.ErrInvalidState, "payment cannot be started for status "+string(b.Status)).WithBooking(b.ID)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, b,
		s.cfg.FrontendURL+"/payments/success", s.cfg.FrontendURL+"/payments/failure")
	if err != nil {
		s.log.Error("checkout session failed", append(bookingFields(b), zap.Error(err))...)
		return "", apperr.Annotate(err, b.ID)
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		// the sweep or a concurrent request may have moved it meanwhile
		if err := s.guard(op, p, cur); err != nil {
			return err
		}
		if !cur.Status.PrePayment() {
			return apperr.New(op, apperr.ErrInvalidState, "payment cannot be started for status "+string(cur.Status)).WithBooking(cur.ID)
		}
		cur.PaymentSessionID = session.ID
		cur.Status = model.StatusPaymentPending
		cur.UpdatedAt = s.now().UTC()
		b = cur
		return tx.UpdateBooking(ctx, &cur)
	})
	if err != nil {
		return "", err
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	s.log.Info("payment initiated", append(bookingFields(b), zap.String("session_id", session.ID))...)
	return session.URL, nil
}

// CapturePayment confirms the booking paid through the event's session.
// Events of other types and unknown sessions are logged and ignored.  A
// second delivery for an already CONFIRMED booking is a no-op.  Capturing
// a booking that was cancelled or expired fails with ErrInvalidState and
// needs a manual refund.
func (s *Service) CapturePayment(ctx context.Context, ev payment.Event) error {
	const op = "booking.capture_payment"
	if ev.Type != payment.EventCheckoutCompleted {
		s.log.Info("ignoring webhook event", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return nil
	}
	if ev.SessionID == "" {
		s.log.Warn("checkout event without session", zap.String("event_id", ev.ID))
		return nil
	}

	var (
		b       model.Booking
		changed bool
	)
	err := s.coord.Atomically(ctx, "confirm", func(ctx context.Context, tx repository.Tx) error {
		var err error
		b, err = tx.LockBookingBySession(ctx, ev.SessionID)
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn("no booking for payment session", zap.String("session_id", ev.SessionID), zap.String("event_id", ev.ID))
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case b.Status == model.StatusConfirmed:
			return nil
		case !b.Status.PrePayment():
			return apperr.New(op, apperr.ErrInvalidState, "payment captured for "+string(b.Status)+" booking").WithBooking(b.ID)
		}
		if err := s.coord.Confirm(ctx, tx, b); err != nil {
			return err
		}
		b.Status = model.StatusConfirmed
		b.UpdatedAt = s.now().UTC()
		changed = true
		return tx.UpdateBooking(ctx, &b)
	})
	if err != nil {
		s.log.Error("payment capture rejected; refund manually",
			zap.String("session_id", ev.SessionID), zap.Uint64("booking_id", b.ID), zap.Error(err))
		return err
	}
	if !changed {
		return nil
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	s.log.Info("booking confirmed", bookingFields(b)...)
	s.publish(ctx, queue.BookingConfirmed, b)
	return nil
}

// Cancel releases a CONFIRMED booking's rooms, stores CANCELLED and then
// refunds it.  A refund failure is returned as a gateway error; the
// booking stays CANCELLED.
func (s *Service) Cancel(ctx context.Context, p model.Principal, bookingID uint64) (model.Booking, error) {
	const op = "booking.cancel"
	var b model.Booking
	err := s.coord.Atomically(ctx, "cancel", func(ctx context.Context, tx repository.Tx) error {
		var err error
		if b, err = tx.LockBooking(ctx, bookingID); err != nil {
			return err
		}
		if b.UserID != p.UserID {
			return apperr.New(op, apperr.ErrForbidden, "booking belongs to another user").WithBooking(b.ID)
		}
		if b.Status != model.StatusConfirmed {
			return apperr.New(op, apperr.ErrInvalidState, "only CONFIRMED bookings can be cancelled, status is "+string(b.Status)).WithBooking(b.ID)
		}
		if err := s.coord.Cancel(ctx, tx, b); err != nil {
			return err
		}
		b.Status = model.StatusCancelled
		b.UpdatedAt = s.now().UTC()
		return tx.UpdateBooking(ctx, &b)
	})
	if err != nil {
		return model.Booking{}, err
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	s.log.Info("booking cancelled", bookingFields(b)...)
	s.publish(ctx, queue.BookingCancelled, b)

	if b.PaymentSessionID == "" {
		return b, nil
	}
	if err := s.gateway.Refund(ctx, b.PaymentSessionID); err != nil {
		s.log.Error("refund failed", append(bookingFields(b), zap.Error(err))...)
		return b, apperr.Annotate(err, b.ID)
	}
	return b, nil
}

// Get returns a booking visible to p: its creator or the hotel's owner.
func (s *Service) Get(ctx context.Context, p model.Principal, bookingID uint64) (model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID == p.UserID {
		return b, nil
	}
	if p.Role == model.RoleHotelManager {
		if h, err := s.store.GetHotel(ctx, b.HotelID); err == nil && p.Owns(h) {
			return b, nil
		}
	}
	return model.Booking{}, apperr.New("booking.get", apperr.ErrForbidden, "booking belongs to another user").WithBooking(b.ID)
}

// Status returns the effective status: EXPIRED for a pre-payment booking
// past its TTL even before the sweep has stored it.
func (s *Service) Status(ctx context.Context, p model.Principal, bookingID uint64) (model.BookingStatus, error) {
	b, err := s.Get(ctx, p, bookingID)
	if err != nil {
		return "", err
	}
	return EffectiveStatus(b, s.now(), s.cfg.TTL), nil
}

// EffectiveStatus reports b's status as the guards see it at now.
func EffectiveStatus(b model.Booking, now time.Time, ttl time.Duration) model.BookingStatus {
	if model.IsExpired(b, now, ttl) {
		return model.StatusExpired
	}
	return b.Status
}

// ListMine returns the principal's bookings, newest first.
func (s *Service) ListMine(ctx context.Context, p model.Principal) ([]model.Booking, error) {
	return s.store.ListUserBookings(ctx, p.UserID)
}

// TTL is the configured reservation lifetime.
func (s *Service) TTL() time.Duration { return s.cfg.TTL }

// Now is the service clock.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) publish(ctx context.Context, typ string, b model.Booking) {
	// delivery failures are logged by the publisher and do not undo the
	// committed transition
	_ = s.events.Publish(ctx, queue.NewBookingEvent(typ, b, s.now()))
}
