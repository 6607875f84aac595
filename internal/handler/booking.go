package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking/internal/booking"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// BookingHandler serves the guest side of the booking lifecycle.  Every
// route runs behind JWTAuth.
type BookingHandler struct {
	svc *booking.Service
	log *zap.Logger
}

func NewBookingHandler(svc *booking.Service, log *zap.Logger) *BookingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{svc: svc, log: log.Named("booking_handler")}
}

func (h *BookingHandler) render(b model.Booking) bookingDTO {
	return toBookingDTO(b, booking.EffectiveStatus(b, h.svc.Now(), h.svc.TTL()))
}

type createBookingReq struct {
	HotelID    uint64 `json:"hotel_id"`
	RoomID     uint64 `json:"room_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	RoomsCount int    `json:"rooms_count"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.HotelID == 0 || req.RoomID == 0 {
		return badRequest(c, "hotel_id and room_id are required")
	}
	r, err := model.ParseDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return badRequest(c, err.Error())
	}
	b, err := h.svc.Initialize(c.Request().Context(), middleware.Principal(c), booking.InitRequest{
		HotelID: req.HotelID, RoomID: req.RoomID, Range: r, RoomsCount: req.RoomsCount,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, h.render(b))
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.svc.Get(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.render(b))
}

// Status handles GET /v1/bookings/:id/status.
func (h *BookingHandler) Status(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	status, err := h.svc.Status(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": id, "status": status})
}

// AddGuests handles POST /v1/bookings/:id/guests with a body of the form
// {"guests": [{"name", "age", "gender"}]}.
func (h *BookingHandler) AddGuests(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var body struct {
		Guests []guestDTO `json:"guests"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	guests := make([]model.Guest, 0, len(body.Guests))
	for _, g := range body.Guests {
		guests = append(guests, model.Guest{
			Name: g.Name, Age: g.Age, Gender: model.Gender(strings.ToUpper(strings.TrimSpace(g.Gender))),
		})
	}
	b, err := h.svc.AddGuests(c.Request().Context(), middleware.Principal(c), id, guests)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.render(b))
}

// InitiatePayment handles POST /v1/bookings/:id/payments and returns the
// checkout URL.
func (h *BookingHandler) InitiatePayment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	url, err := h.svc.InitiatePayment(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": id, "checkout_url": url})
}

// Cancel handles POST /v1/bookings/:id/cancel.  A failed refund still
// reports the cancellation with 502 and the cancelled booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.svc.Cancel(c.Request().Context(), middleware.Principal(c), id)
	if err != nil {
		if b.Status == model.StatusCancelled {
			status, code := statusOf(err)
			h.log.Error("refund failed after cancellation", zap.Uint64("booking_id", id), zap.Error(err))
			return c.JSON(status, echo.Map{"error": code, "message": "booking cancelled, refund pending", "booking": h.render(b)})
		}
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, h.render(b))
}

// ListMine handles GET /v1/me/bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	bookings, err := h.svc.ListMine(c.Request().Context(), middleware.Principal(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := make([]bookingDTO, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, h.render(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}
