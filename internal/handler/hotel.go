package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/hotel"
	"github.com/iliyamo/hotel-booking/internal/middleware"
)

// HotelHandler serves public hotel browsing and the manager's admin API.
type HotelHandler struct {
	svc *hotel.Service
	log *zap.Logger
}

func NewHotelHandler(svc *hotel.Service, log *zap.Logger) *HotelHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HotelHandler{svc: svc, log: log.Named("hotel_handler")}
}

type summaryDTO struct {
	HotelID uint64 `json:"hotel_id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Price   string `json:"price"`
}

// Search handles GET /v1/hotels/search?city=&check_in=&check_out=&rooms=&page=&page_size=
func (h *HotelHandler) Search(c echo.Context) error {
	r, err := queryRange(c, "check_in", "check_out")
	if err != nil {
		return badRequest(c, err.Error())
	}
	rooms := 1
	if v := c.QueryParam("rooms"); v != "" {
		if rooms, err = strconv.Atoi(v); err != nil || rooms < 1 {
			return badRequest(c, "rooms must be a positive integer")
		}
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))

	res, err := h.svc.Search(c.Request().Context(), hotel.SearchRequest{
		City: c.QueryParam("city"), Range: r, Rooms: rooms, Page: page, PageSize: size,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	data := make([]summaryDTO, 0, len(res.Hotels))
	for _, s := range res.Hotels {
		data = append(data, summaryDTO{HotelID: s.HotelID, Name: s.Name, City: s.City, Price: s.Price.StringFixed(2)})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      data,
		"total":     res.Total,
		"page":      res.Page,
		"page_size": res.PageSize,
	})
}

// Info handles GET /v1/hotels/:id.
func (h *HotelHandler) Info(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid hotel id")
	}
	ht, rooms, err := h.svc.Info(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]roomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoomDTO(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"hotel": toHotelDTO(ht), "rooms": out})
}

// CreateHotel handles POST /v1/admin/hotels.
func (h *HotelHandler) CreateHotel(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
		City string `json:"city"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ht, err := h.svc.CreateHotel(c.Request().Context(), middleware.Principal(c), req.Name, req.City)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, toHotelDTO(ht))
}

// Activate handles POST /v1/admin/hotels/:id/activate.
func (h *HotelHandler) Activate(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid hotel id")
	}
	ht, err := h.svc.ActivateHotel(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, toHotelDTO(ht))
}

// AddRoom handles POST /v1/admin/hotels/:id/rooms.  base_price is a
// decimal string.
func (h *HotelHandler) AddRoom(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid hotel id")
	}
	var req struct {
		Type       string `json:"type"`
		BasePrice  string `json:"base_price"`
		TotalCount int    `json:"total_count"`
		Capacity   int    `json:"capacity"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.BasePrice))
	if err != nil {
		return badRequest(c, "base_price must be a decimal")
	}
	room, err := h.svc.AddRoom(c.Request().Context(), middleware.Principal(c), id, hotel.RoomInput{
		Type: req.Type, BasePrice: price, TotalCount: req.TotalCount, Capacity: req.Capacity,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, toRoomDTO(room))
}

// DeleteRoom handles DELETE /v1/admin/rooms/:id.
func (h *HotelHandler) DeleteRoom(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	if err := h.svc.DeleteRoom(c.Request().Context(), middleware.Principal(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListInventory handles GET /v1/admin/rooms/:id/inventory?start=&end=
func (h *HotelHandler) ListInventory(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	r, err := queryRange(c, "start", "end")
	if err != nil {
		return badRequest(c, err.Error())
	}
	rows, err := h.svc.ListRoomInventory(c.Request().Context(), middleware.Principal(c), id, r)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]inventoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toInventoryDTO(row))
	}
	return c.JSON(http.StatusOK, echo.Map{"room_id": id, "inventory": out})
}

// UpdateInventory handles PATCH /v1/admin/rooms/:id/inventory.  An omitted
// surge_factor resets it to 1.
func (h *HotelHandler) UpdateInventory(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid room id")
	}
	var req struct {
		Start       string `json:"start"`
		End         string `json:"end"`
		SurgeFactor string `json:"surge_factor"`
		Closed      bool   `json:"closed"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	r, err := parseRange(req.Start, req.End)
	if err != nil {
		return badRequest(c, err.Error())
	}
	surge := decimal.NewFromInt(1)
	if s := strings.TrimSpace(req.SurgeFactor); s != "" {
		if surge, err = decimal.NewFromString(s); err != nil {
			return badRequest(c, "surge_factor must be a decimal")
		}
	}
	if err := h.svc.UpdateInventory(c.Request().Context(), middleware.Principal(c), id, r, surge, req.Closed); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"room_id":      id,
		"start":        req.Start,
		"end":          req.End,
		"surge_factor": surge.String(),
		"closed":       req.Closed,
	})
}

// ListBookings handles GET /v1/admin/hotels/:id/bookings.
func (h *HotelHandler) ListBookings(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid hotel id")
	}
	bookings, err := h.svc.ListBookings(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingDTO(b, b.Status))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Report handles GET /v1/admin/hotels/:id/report?start=&end=
func (h *HotelHandler) Report(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid hotel id")
	}
	r, err := queryRange(c, "start", "end")
	if err != nil {
		return badRequest(c, err.Error())
	}
	rep, err := h.svc.Report(c.Request().Context(), middleware.Principal(c), id, r)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"hotel_id":        id,
		"start":           c.QueryParam("start"),
		"end":             c.QueryParam("end"),
		"booking_count":   rep.BookingCount,
		"total_revenue":   rep.TotalRevenue.StringFixed(2),
		"average_revenue": rep.AverageRevenue.StringFixed(2),
	})
}
