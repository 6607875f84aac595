package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Hotel represents a row in the `hotels` table.  Only active hotels take
// part in search and price refresh.
type Hotel struct {
	ID        uint64    // hotels.id
	Name      string    // hotels.name
	City      string    // hotels.city
	Active    bool      // hotels.active
	OwnerID   uint64    // hotels.owner_id (users.id)
	CreatedAt time.Time // hotels.created_at
	UpdatedAt time.Time // hotels.updated_at
}

// Room represents a room type of a hotel.  TotalCount is copied into every
// inventory row created for the room.
type Room struct {
	ID         uint64          // rooms.id
	HotelID    uint64          // rooms.hotel_id
	Type       string          // rooms.type
	BasePrice  decimal.Decimal // rooms.base_price
	TotalCount int             // rooms.total_count
	Capacity   int             // rooms.capacity (guests per room)
	CreatedAt  time.Time       // rooms.created_at
	UpdatedAt  time.Time       // rooms.updated_at
}

// HotelSummary is a search hit: a hotel with its average minimum nightly
// price over the searched range.
type HotelSummary struct {
	HotelID uint64
	Name    string
	City    string
	Price   decimal.Decimal
}
