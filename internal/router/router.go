// Package router registers the HTTP routes of the API on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/metrics"
	"github.com/iliyamo/hotel-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers signup, login and refresh under /v1/auth and the
// session endpoints that need an access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)
	auth.POST("/auth/logout", a.Logout)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers hotel browsing and the payment provider's
// webhook.  Browsing responses go through cache.
func RegisterPublic(e *echo.Echo, h *handler.HotelHandler, w *handler.WebhookHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/hotels/search", h.Search, cache)
	e.GET("/v1/hotels/:id", h.Info, cache)
	e.POST("/v1/webhooks/payment", w.Payment)
}
