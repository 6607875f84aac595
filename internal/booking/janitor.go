package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/metrics"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// SweepExpired releases the reserved rooms of every pre-payment booking
// older than TTL plus grace and stores it as EXPIRED.  Each booking is
// expired in its own transaction after re-checking it under the booking
// lock, so a payment captured concurrently wins or loses cleanly.  It
// returns the number of bookings expired.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	maxAge := s.cfg.TTL + s.cfg.SweepGrace
	expired := 0
	for {
		now := s.now()
		ids, err := s.store.ListStaleBookings(ctx, now.Add(-maxAge), s.cfg.SweepBatch)
		if err != nil {
			return expired, err
		}
		progressed := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return expired, err
			}
			ok, err := s.expireOne(ctx, id, now, maxAge)
			if err != nil {
				s.log.Error("expire booking failed", zap.Uint64("booking_id", id), zap.Error(err))
				continue
			}
			if ok {
				progressed++
			}
		}
		expired += progressed
		// a short page is the last one; a page with no progress would repeat
		if len(ids) < s.cfg.SweepBatch || progressed == 0 {
			return expired, nil
		}
	}
}

func (s *Service) expireOne(ctx context.Context, id uint64, now time.Time, maxAge time.Duration) (bool, error) {
	var (
		b       model.Booking
		changed bool
	)
	err := s.coord.Atomically(ctx, "expire", func(ctx context.Context, tx repository.Tx) error {
		var err error
		if b, err = tx.LockBooking(ctx, id); err != nil {
			return err
		}
		if !b.Status.PrePayment() || !model.IsExpired(b, now, maxAge) {
			return nil
		}
		if err := s.coord.Expire(ctx, tx, b); err != nil {
			return err
		}
		b.Status = model.StatusExpired
		b.UpdatedAt = now.UTC()
		changed = true
		return tx.UpdateBooking(ctx, &b)
	})
	if err != nil || !changed {
		return false, err
	}
	metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	s.log.Info("booking expired", bookingFields(b)...)
	s.publish(ctx, queue.BookingExpired, b)
	return true, nil
}

// Janitor runs SweepExpired on a fixed interval.
type Janitor struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
}

func NewJanitor(svc *Service, interval time.Duration, log *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{svc: svc, interval: interval, log: log.Named("janitor")}
}

// Run sweeps once immediately and then on every tick until ctx ends.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		n, err := j.svc.SweepExpired(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			j.log.Error("sweep failed", zap.Int("expired", n), zap.Error(err))
		case n > 0:
			j.log.Info("sweep finished", zap.Int("expired", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
