package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// Store is the durable state behind the ledger and the booking services.
// Reads through the Reader half run outside any transaction and may observe
// slightly stale counters; every counter mutation goes through InTx.
type Store interface {
	Reader
	// InTx runs fn inside one transaction.  A non-nil error from fn rolls
	// back every write; nil commits.  Row locks taken by fn are held until
	// InTx returns.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// SearchQuery selects hotels with a room type free on every night of Range.
type SearchQuery struct {
	City     string
	Range    model.DateRange
	Rooms    int
	Page     int
	PageSize int
}

// Reader groups non-locking lookups.
type Reader interface {
	GetHotel(ctx context.Context, id uint64) (model.Hotel, error)
	GetRoom(ctx context.Context, id uint64) (model.Room, error)
	ListRooms(ctx context.Context, hotelID uint64) ([]model.Room, error)
	// ListActiveHotelIDs pages through active hotels in id order, starting
	// after afterID.
	ListActiveHotelIDs(ctx context.Context, afterID uint64, limit int) ([]uint64, error)
	ListHotelInventory(ctx context.Context, hotelID uint64, r model.DateRange) ([]model.InventoryRow, error)
	ListRoomInventory(ctx context.Context, roomID uint64, r model.DateRange) ([]model.InventoryRow, error)
	// SearchHotels returns one page of matching active hotels and the total
	// number of matches.
	SearchHotels(ctx context.Context, q SearchQuery) ([]model.HotelSummary, int, error)

	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	ListUserBookings(ctx context.Context, userID uint64) ([]model.Booking, error)
	ListHotelBookings(ctx context.Context, hotelID uint64) ([]model.Booking, error)
	// ListStaleBookings returns ids of pre-payment bookings created before
	// cutoff, oldest first.
	ListStaleBookings(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
}

// Tx is the write side available inside Store.InTx.
type Tx interface {
	// LockInventory takes exclusive locks on every existing row of the room
	// in r, in ascending date order, and returns them in that order.  Dates
	// without a row are simply absent from the result.
	LockInventory(ctx context.Context, roomID uint64, r model.DateRange) ([]model.InventoryRow, error)
	// AdjustCounts adds the deltas to every row of the room in r.  Callers
	// must hold the locks and have validated the result.
	AdjustCounts(ctx context.Context, roomID uint64, r model.DateRange, reservedDelta, bookedDelta int) error
	SetControls(ctx context.Context, roomID uint64, r model.DateRange, surge decimal.Decimal, closed bool) error
	SetPrices(ctx context.Context, rows []model.InventoryRow) error
	UpsertMinPrices(ctx context.Context, prices []model.HotelMinPrice) error
	InsertInventory(ctx context.Context, rows []model.InventoryRow) error
	DeleteRoomInventory(ctx context.Context, roomID uint64) error

	CreateBooking(ctx context.Context, b *model.Booking) error
	LockBooking(ctx context.Context, id uint64) (model.Booking, error)
	LockBookingBySession(ctx context.Context, sessionID string) (model.Booking, error)
	// UpdateBooking persists status, payment session id and updated_at.
	UpdateBooking(ctx context.Context, b *model.Booking) error
	// AttachGuests stores the guests (assigning their ids) and links them to
	// the booking.
	AttachGuests(ctx context.Context, bookingID uint64, guests []model.Guest) error
	// CountOpenBookings counts bookings of the room still holding capacity:
	// pre-payment ones and confirmed ones checking out on or after since.
	CountOpenBookings(ctx context.Context, roomID uint64, since time.Time) (int, error)

	CreateHotel(ctx context.Context, h *model.Hotel) error
	LockHotel(ctx context.Context, id uint64) (model.Hotel, error)
	SetHotelActive(ctx context.Context, id uint64, active bool) error
	CreateRoom(ctx context.Context, r *model.Room) error
	DeleteRoom(ctx context.Context, id uint64) error
}
