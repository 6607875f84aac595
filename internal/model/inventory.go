package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRow is the availability record for one room type on one
// calendar day.  Rows are keyed by (RoomID, Date).  BookedCount and
// ReservedCount are written only inside a ledger transaction and must always
// satisfy 0 <= booked, 0 <= reserved and booked + reserved <= total.
//
// Fields:
//
//	ID            – primary key.
//	HotelID       – owning hotel (denormalized for search and refresh).
//	RoomID        – room type this row belongs to.
//	Date          – calendar day, midnight UTC.
//	TotalCount    – rooms of this type that exist on the date.
//	BookedCount   – rooms confirmed by a captured payment.
//	ReservedCount – rooms held by bookings that have not paid yet.
//	SurgeFactor   – manager controlled price multiplier, default 1.
//	Price         – last computed nightly price (2 decimal places).
//	Closed        – when true the date cannot be reserved.
//	City          – hotel city, copied for search.
//	BasePrice     – rooms.base_price, joined on read; not stored on the row.
type InventoryRow struct {
	ID            uint64          // inventory.id
	HotelID       uint64          // inventory.hotel_id
	RoomID        uint64          // inventory.room_id
	Date          time.Time       // inventory.date
	TotalCount    int             // inventory.total_count
	BookedCount   int             // inventory.booked_count
	ReservedCount int             // inventory.reserved_count
	SurgeFactor   decimal.Decimal // inventory.surge_factor
	Price         decimal.Decimal // inventory.price
	Closed        bool            // inventory.closed
	City          string          // inventory.city
	BasePrice     decimal.Decimal // rooms.base_price
}

// Free is the capacity not yet committed to any booking.
func (r InventoryRow) Free() int {
	return r.TotalCount - r.BookedCount - r.ReservedCount
}

// Consistent reports whether the counters satisfy the capacity invariant.
func (r InventoryRow) Consistent() bool {
	return r.BookedCount >= 0 && r.ReservedCount >= 0 && r.BookedCount+r.ReservedCount <= r.TotalCount
}

// HotelMinPrice is the cheapest nightly price of any room in a hotel on a
// date.  Rows are republished by the price refresh job and averaged by
// search.
type HotelMinPrice struct {
	HotelID uint64          // hotel_min_prices.hotel_id
	Date    time.Time       // hotel_min_prices.date
	Price   decimal.Decimal // hotel_min_prices.price
}
