// Package reservation is the unit of atomicity for booking-level inventory
// changes.  Atomically opens one store transaction; the step methods run
// inside it and always lock a room's rows in ascending date order through
// the ledger.  Row locks live only as long as the transaction, never
// across the multi-minute booking lifecycle.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/apperr"
	"github.com/iliyamo/hotel-booking/internal/ledger"
	"github.com/iliyamo/hotel-booking/internal/metrics"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/tracing"
)

// Coordinator sequences ledger operations and prices reserved nights.
type Coordinator struct {
	store  repository.Store
	ledger *ledger.Ledger
	pricer *pricing.Engine
	log    *zap.Logger
	tracer trace.Tracer
}

// New wires a coordinator.  A nil logger disables logging.
func New(store repository.Store, l *ledger.Ledger, pricer *pricing.Engine, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store:  store,
		ledger: l,
		pricer: pricer,
		log:    log.Named("coordinator"),
		tracer: tracing.Tracer(),
	}
}

// Atomically runs fn in one transaction.  Any error from fn, including
// one returned by a step method, rolls back every ledger and booking write
// made inside it.
func (c *Coordinator) Atomically(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	ctx, span := c.tracer.Start(ctx, "reservation."+op)
	defer span.End()

	start := time.Now()
	err := c.store.InTx(ctx, fn)
	metrics.CoordinatorDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.CoordinatorOps.WithLabelValues(op, outcome(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("transaction rolled back", append(auditFields(err), zap.String("op", op), zap.Error(err))...)
		return err
	}
	span.SetStatus(codes.Ok, op)
	return nil
}

// Initiate locks and checks the range, reserves n rooms on every night and
// returns the unrounded total price of the stay computed over the locked
// rows.
func (c *Coordinator) Initiate(ctx context.Context, tx repository.Tx, roomID uint64, r model.DateRange, n int) (decimal.Decimal, error) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("room_id", int64(roomID)),
		attribute.String("range", r.String()),
		attribute.Int("rooms", n),
	)
	rows, err := c.ledger.LockAndCheck(ctx, tx, roomID, r, n)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.ledger.Reserve(ctx, tx, roomID, r, rows, n); err != nil {
		return decimal.Zero, err
	}
	return c.pricer.TotalPrice(rows, n), nil
}

// Confirm re-locks the booking's range and turns its reserved rooms into
// booked ones.  It fails with apperr.ErrInvalidState when the reservation
// is gone, which the caller must treat as "do not confirm".
func (c *Coordinator) Confirm(ctx context.Context, tx repository.Tx, b model.Booking) error {
	err := c.ledger.Confirm(ctx, tx, b.RoomID, b.Range(), b.RoomsCount)
	return apperr.Annotate(err, b.ID)
}

// Cancel gives the booking's booked rooms back.
func (c *Coordinator) Cancel(ctx context.Context, tx repository.Tx, b model.Booking) error {
	err := c.ledger.ReleaseBooked(ctx, tx, b.RoomID, b.Range(), b.RoomsCount)
	return apperr.Annotate(err, b.ID)
}

// Expire gives an unpaid booking's reserved rooms back.
func (c *Coordinator) Expire(ctx context.Context, tx repository.Tx, b model.Booking) error {
	err := c.ledger.ReleaseReserved(ctx, tx, b.RoomID, b.Range(), b.RoomsCount)
	return apperr.Annotate(err, b.ID)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrInsufficientInventory):
		return "insufficient"
	case errors.Is(err, apperr.ErrOversell):
		return "oversell"
	case errors.Is(err, apperr.ErrInvalidState):
		return "invalid_state"
	}
	return "error"
}

// auditFields extracts booking, room and range from an *apperr.Error.
func auditFields(err error) []zap.Field {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return nil
	}
	fields := make([]zap.Field, 0, 4)
	if ae.BookingID != 0 {
		fields = append(fields, zap.Uint64("booking_id", ae.BookingID))
	}
	if ae.RoomID != 0 {
		fields = append(fields, zap.Uint64("room_id", ae.RoomID))
	}
	if ae.Range != nil {
		fields = append(fields,
			zap.String("start", ae.Range.Start.Format(model.DateLayout)),
			zap.String("end", ae.Range.End.Format(model.DateLayout)))
	}
	return fields
}
