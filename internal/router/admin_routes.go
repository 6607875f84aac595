package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// RegisterAdmin registers hotel management under /v1/admin.  Routes
// require the HOTEL_MANAGER role; hotel ownership is checked by the
// service.
func RegisterAdmin(e *echo.Echo, h *handler.HotelHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleHotelManager),
		limit,
	)
	g.POST("/hotels", h.CreateHotel)
	g.POST("/hotels/:id/activate", h.Activate)
	g.POST("/hotels/:id/rooms", h.AddRoom)
	g.GET("/hotels/:id/bookings", h.ListBookings)
	g.GET("/hotels/:id/report", h.Report)

	g.DELETE("/rooms/:id", h.DeleteRoom)
	g.GET("/rooms/:id/inventory", h.ListInventory)
	g.PATCH("/rooms/:id/inventory", h.UpdateInventory)
}
