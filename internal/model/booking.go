package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the stored lifecycle state of a booking.
type BookingStatus string

const (
	StatusReserved       BookingStatus = "RESERVED"
	StatusGuestsAdded    BookingStatus = "GUESTS_ADDED"
	StatusPaymentPending BookingStatus = "PAYMENT_PENDING"
	StatusConfirmed      BookingStatus = "CONFIRMED"
	StatusCancelled      BookingStatus = "CANCELLED"
	// StatusExpired is written only by the expiry sweep after it has
	// released the booking's reserved capacity.
	StatusExpired BookingStatus = "EXPIRED"
)

// DefaultBookingTTL is how long an unpaid booking holds its reservation.
const DefaultBookingTTL = 10 * time.Minute

// PrePayment reports whether the booking still holds reserved (not booked)
// capacity.
func (s BookingStatus) PrePayment() bool {
	switch s {
	case StatusReserved, StatusGuestsAdded, StatusPaymentPending:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusReserved, StatusGuestsAdded, StatusPaymentPending,
		StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Booking models a row in the `bookings` table together with its guests.
//
// Fields:
//
//	ID               – primary key.
//	HotelID, RoomID  – what was booked.
//	UserID           – the principal that created the booking.
//	RoomsCount       – rooms of RoomID held on every night.
//	CheckIn/CheckOut – inclusive date range of the stay.
//	Status           – lifecycle state.
//	Amount           – total price computed once at reservation time.
//	PaymentSessionID – gateway checkout session id, empty until payment starts.
type Booking struct {
	ID               uint64          // bookings.id
	HotelID          uint64          // bookings.hotel_id
	RoomID           uint64          // bookings.room_id
	UserID           uint64          // bookings.user_id
	RoomsCount       int             // bookings.rooms_count
	CheckIn          time.Time       // bookings.check_in_date
	CheckOut         time.Time       // bookings.check_out_date
	Status           BookingStatus   // bookings.status
	Amount           decimal.Decimal // bookings.amount
	PaymentSessionID string          // bookings.payment_session_id (nullable)
	CreatedAt        time.Time       // bookings.created_at
	UpdatedAt        time.Time       // bookings.updated_at
	Guests           []Guest         // booking_guests join
}

// Range returns the stay as an inclusive ledger range.
func (b Booking) Range() DateRange {
	return DateRange{Start: Day(b.CheckIn), End: Day(b.CheckOut)}
}

// IsExpired reports whether the booking should be treated as expired at now.
// Confirmed and cancelled bookings never expire; a stored EXPIRED status is
// always expired; any pre-payment booking older than ttl is expired whatever
// its stored status says.
func IsExpired(b Booking, now time.Time, ttl time.Duration) bool {
	switch {
	case b.Status == StatusExpired:
		return true
	case !b.Status.PrePayment():
		return false
	}
	return now.Sub(b.CreatedAt) > ttl
}

// HotelReport aggregates confirmed bookings of a hotel over a window.
type HotelReport struct {
	BookingCount   int
	TotalRevenue   decimal.Decimal
	AverageRevenue decimal.Decimal
}
