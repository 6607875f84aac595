// Package queue defines the booking events exchanged over RabbitMQ, the
// publisher used by the booking service and the audit consumer.
package queue

import (
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
)

// Event types double as queue names and routing keys.
const (
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingExpired   = "booking.expired"
)

// Queues lists every queue the publisher and consumer declare.
var Queues = []string{BookingConfirmed, BookingCancelled, BookingExpired}

// BookingEvent is published after a booking transition commits.  It
// carries enough for downstream consumers to log, notify, or feed
// analytics without querying the primary database.
type BookingEvent struct {
	Type       string `json:"type"`
	BookingID  uint64 `json:"booking_id"`
	UserID     uint64 `json:"user_id"`
	HotelID    uint64 `json:"hotel_id"`
	RoomID     uint64 `json:"room_id"`
	RoomsCount int    `json:"rooms_count"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}

// NewBookingEvent snapshots b as an event of the given type.
func NewBookingEvent(typ string, b model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		UserID:     b.UserID,
		HotelID:    b.HotelID,
		RoomID:     b.RoomID,
		RoomsCount: b.RoomsCount,
		CheckIn:    b.CheckIn.Format(model.DateLayout),
		CheckOut:   b.CheckOut.Format(model.DateLayout),
		Amount:     pricing.Round(b.Amount).StringFixed(2),
		Status:     string(b.Status),
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
