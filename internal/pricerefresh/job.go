// Package pricerefresh reprices future inventory and republishes the
// per-hotel minimum nightly prices used by search.
package pricerefresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/ledger"
	"github.com/iliyamo/hotel-booking/internal/metrics"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

const DefaultBatch = 100

type Job struct {
	store   repository.Store
	engine  *pricing.Engine
	log     *zap.Logger
	batch   int
	horizon int
	now     func() time.Time
}

type Option func(*Job)

func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithBatch sets how many hotel ids are fetched per page.
func WithBatch(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.batch = n
		}
	}
}

// WithHorizon sets how many days past today are repriced.
func WithHorizon(days int) Option {
	return func(j *Job) {
		if days > 0 {
			j.horizon = days
		}
	}
}

func New(store repository.Store, engine *pricing.Engine, log *zap.Logger, opts ...Option) *Job {
	if log == nil {
		log = zap.NewNop()
	}
	j := &Job{
		store:   store,
		engine:  engine,
		log:     log.Named("price_refresh"),
		batch:   DefaultBatch,
		horizon: ledger.DefaultHorizonDays,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Result summarizes one RefreshAll run.
type Result struct {
	Hotels int
	Rows   int
	Failed int
}

// RefreshAll walks every active hotel in id order and refreshes it.  A
// failing hotel is logged and skipped; the joined errors are returned once
// all hotels were visited.
func (j *Job) RefreshAll(ctx context.Context) (Result, error) {
	started := time.Now()
	defer func() { metrics.PriceRefreshDuration.Observe(time.Since(started).Seconds()) }()

	var (
		res   Result
		errs  []error
		after uint64
	)
	for {
		ids, err := j.store.ListActiveHotelIDs(ctx, after, j.batch)
		if err != nil {
			return res, fmt.Errorf("list active hotels after %d: %w", after, err)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			n, err := j.RefreshHotel(ctx, id)
			if err != nil {
				res.Failed++
				errs = append(errs, err)
				j.log.Error("hotel price refresh failed", zap.Uint64("hotel_id", id), zap.Error(err))
				continue
			}
			res.Hotels++
			res.Rows += n
		}
		if len(ids) < j.batch {
			break
		}
		after = ids[len(ids)-1]
	}
	j.log.Info("price refresh finished",
		zap.Int("hotels", res.Hotels), zap.Int("rows", res.Rows), zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(started)))
	return res, errors.Join(errs...)
}

// RefreshHotel reprices the hotel's inventory for [today, today+horizon]
// and replaces its daily minimum prices.  It returns the rows repriced.
func (j *Job) RefreshHotel(ctx context.Context, hotelID uint64) (int, error) {
	today := model.Day(j.now())
	r := model.DateRange{Start: today, End: today.AddDate(0, 0, j.horizon)}
	rows, err := j.store.ListHotelInventory(ctx, hotelID, r)
	if err != nil {
		return 0, fmt.Errorf("hotel %d inventory: %w", hotelID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	mins := make(map[int64]model.HotelMinPrice)
	for i := range rows {
		rows[i].Price = pricing.Round(j.engine.NightPrice(rows[i]))
		key := rows[i].Date.Unix()
		if cur, ok := mins[key]; !ok || rows[i].Price.LessThan(cur.Price) {
			mins[key] = model.HotelMinPrice{HotelID: hotelID, Date: rows[i].Date, Price: rows[i].Price}
		}
	}
	prices := make([]model.HotelMinPrice, 0, len(mins))
	for _, d := range r.Dates() {
		if p, ok := mins[d.Unix()]; ok {
			prices = append(prices, p)
		}
	}

	err = j.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.SetPrices(ctx, rows); err != nil {
			return err
		}
		return tx.UpsertMinPrices(ctx, prices)
	})
	if err != nil {
		return 0, fmt.Errorf("hotel %d store prices: %w", hotelID, err)
	}
	metrics.PriceRefreshRows.Add(float64(len(rows)))
	j.log.Debug("hotel prices refreshed", zap.Uint64("hotel_id", hotelID), zap.Int("rows", len(rows)))
	return len(rows), nil
}

// Run calls RefreshAll on every tick until ctx ends.  The first run
// happens after one interval.
func (j *Job) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RefreshAll(ctx); err != nil && ctx.Err() == nil {
				j.log.Error("price refresh run failed", zap.Error(err))
			}
		}
	}
}
