// Package pricing computes nightly room prices.  A price is produced by a
// fixed, ordered list of pure stages; each stage is a plain function so it
// can be tested, reordered or extended on its own.  All arithmetic keeps
// full decimal precision; callers round with Round when they persist or
// display an amount.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// DefaultStages is the production order: Base, Surge, Occupancy, Urgency,
// Holiday.
var DefaultStages = []Stage{Base, Surge, Occupancy, Urgency, Holiday}

// Pipeline applies its stages in order.
type Pipeline []Stage

// Apply runs every stage over n starting from zero.
func (p Pipeline) Apply(n Night) decimal.Decimal {
	price := decimal.Zero
	for _, stage := range p {
		price = stage(price, n)
	}
	return price
}

// Engine prices inventory rows with a pipeline, a holiday calendar and a
// clock for "today".
type Engine struct {
	pipeline Pipeline
	holidays HolidayCalendar
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithStages replaces the default pipeline.
func WithStages(stages ...Stage) Option {
	return func(e *Engine) { e.pipeline = Pipeline(stages) }
}

// WithClock sets the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an engine using DefaultStages.  A nil calendar means no
// holidays.
func NewEngine(holidays HolidayCalendar, opts ...Option) *Engine {
	if holidays == nil {
		holidays = NoHolidays{}
	}
	e := &Engine{
		pipeline: Pipeline(DefaultStages),
		holidays: holidays,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NightPrice returns the unrounded price of one night.
func (e *Engine) NightPrice(row model.InventoryRow) decimal.Decimal {
	return e.pipeline.Apply(e.night(row, model.Day(e.now())))
}

// TotalPrice returns roomsCount times the sum of the nightly prices of rows.
func (e *Engine) TotalPrice(rows []model.InventoryRow, roomsCount int) decimal.Decimal {
	today := model.Day(e.now())
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(e.pipeline.Apply(e.night(row, today)))
	}
	return sum.Mul(decimal.NewFromInt(int64(roomsCount)))
}

func (e *Engine) night(row model.InventoryRow, today time.Time) Night {
	return Night{Row: row, Today: today, IsHoliday: e.holidays.IsHoliday(model.Day(row.Date))}
}

// Round rounds an amount to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
