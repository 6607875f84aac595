package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
)

var (
	occupancyMultiplier = decimal.RequireFromString("1.20")
	urgencyMultiplier   = decimal.RequireFromString("1.15")
	holidayMultiplier   = decimal.RequireFromString("1.25")
)

// urgencyWindow is the number of days, starting today, that count as a
// last-minute stay.
const urgencyWindow = 7

// Night is the input every stage sees for one inventory row.
type Night struct {
	Row       model.InventoryRow
	Today     time.Time // midnight UTC of the pricing day
	IsHoliday bool
}

// Stage is one pure price adjustment.  It receives the price produced by
// the previous stage.
type Stage func(price decimal.Decimal, n Night) decimal.Decimal

// Base ignores its input and starts from the room's configured price.
func Base(_ decimal.Decimal, n Night) decimal.Decimal {
	return n.Row.BasePrice
}

// Surge applies the manager controlled multiplier of the row.
func Surge(price decimal.Decimal, n Night) decimal.Decimal {
	return price.Mul(n.Row.SurgeFactor)
}

// Occupancy adds 20% when more than 80% of the rooms are booked.  Rows with
// no capacity count as empty.
func Occupancy(price decimal.Decimal, n Night) decimal.Decimal {
	total := n.Row.TotalCount
	if total <= 0 {
		return price
	}
	// booked/total > 0.8  <=>  5*booked > 4*total
	if 5*n.Row.BookedCount > 4*total {
		return price.Mul(occupancyMultiplier)
	}
	return price
}

// Urgency adds 15% to nights in [today, today+7).
func Urgency(price decimal.Decimal, n Night) decimal.Decimal {
	d := model.Day(n.Row.Date)
	today := model.Day(n.Today)
	if !d.Before(today) && d.Before(today.AddDate(0, 0, urgencyWindow)) {
		return price.Mul(urgencyMultiplier)
	}
	return price
}

// Holiday adds 25% when the calendar marks the date as a holiday.
func Holiday(price decimal.Decimal, n Night) decimal.Decimal {
	if n.IsHoliday {
		return price.Mul(holidayMultiplier)
	}
	return price
}
