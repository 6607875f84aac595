package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// RegisterBookings registers the booking lifecycle under /v1.  Any
// authenticated role may book; ownership is checked by the service.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleGuest, model.RoleHotelManager),
		limit,
	)
	g.POST("/bookings", h.Create)
	g.GET("/bookings/:id", h.Get)
	g.GET("/bookings/:id/status", h.Status)
	g.POST("/bookings/:id/guests", h.AddGuests)
	g.POST("/bookings/:id/payments", h.InitiatePayment)
	g.POST("/bookings/:id/cancel", h.Cancel)
	g.GET("/me/bookings", h.ListMine)
}
