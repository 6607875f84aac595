package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/model"
)

type guestDTO struct {
	ID     uint64 `json:"id,omitempty"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type bookingDTO struct {
	ID         uint64     `json:"id"`
	HotelID    uint64     `json:"hotel_id"`
	RoomID     uint64     `json:"room_id"`
	RoomsCount int        `json:"rooms_count"`
	CheckIn    string     `json:"check_in"`
	CheckOut   string     `json:"check_out"`
	Status     string     `json:"status"`
	Amount     string     `json:"amount"`
	Guests     []guestDTO `json:"guests"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// toBookingDTO renders b with the status the guards would see at now.
func toBookingDTO(b model.Booking, status model.BookingStatus) bookingDTO {
	guests := make([]guestDTO, 0, len(b.Guests))
	for _, g := range b.Guests {
		guests = append(guests, guestDTO{ID: g.ID, Name: g.Name, Age: g.Age, Gender: string(g.Gender)})
	}
	return bookingDTO{
		ID:         b.ID,
		HotelID:    b.HotelID,
		RoomID:     b.RoomID,
		RoomsCount: b.RoomsCount,
		CheckIn:    b.CheckIn.Format(model.DateLayout),
		CheckOut:   b.CheckOut.Format(model.DateLayout),
		Status:     string(status),
		Amount:     b.Amount.StringFixed(2),
		Guests:     guests,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

type hotelDTO struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	City   string `json:"city"`
	Active bool   `json:"active"`
}

func toHotelDTO(h model.Hotel) hotelDTO {
	return hotelDTO{ID: h.ID, Name: h.Name, City: h.City, Active: h.Active}
}

type roomDTO struct {
	ID         uint64 `json:"id"`
	HotelID    uint64 `json:"hotel_id"`
	Type       string `json:"type"`
	BasePrice  string `json:"base_price"`
	TotalCount int    `json:"total_count"`
	Capacity   int    `json:"capacity"`
}

func toRoomDTO(r model.Room) roomDTO {
	return roomDTO{
		ID: r.ID, HotelID: r.HotelID, Type: r.Type, BasePrice: r.BasePrice.StringFixed(2),
		TotalCount: r.TotalCount, Capacity: r.Capacity,
	}
}

type inventoryDTO struct {
	Date          string `json:"date"`
	TotalCount    int    `json:"total_count"`
	BookedCount   int    `json:"booked_count"`
	ReservedCount int    `json:"reserved_count"`
	SurgeFactor   string `json:"surge_factor"`
	Price         string `json:"price"`
	Closed        bool   `json:"closed"`
}

func toInventoryDTO(r model.InventoryRow) inventoryDTO {
	return inventoryDTO{
		Date:          r.Date.Format(model.DateLayout),
		TotalCount:    r.TotalCount,
		BookedCount:   r.BookedCount,
		ReservedCount: r.ReservedCount,
		SurgeFactor:   r.SurgeFactor.String(),
		Price:         r.Price.StringFixed(2),
		Closed:        r.Closed,
	}
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryRange parses two query parameters as a date range.
func queryRange(c echo.Context, startKey, endKey string) (model.DateRange, error) {
	return parseRange(c.QueryParam(startKey), c.QueryParam(endKey))
}

func parseRange(start, end string) (model.DateRange, error) {
	return model.ParseDateRange(strings.TrimSpace(start), strings.TrimSpace(end))
}
