package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// CoordinatorOps counts ledger transactions by operation and outcome
	// ("ok", "insufficient", "invalid_state", "error").
	CoordinatorOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_coordinator_ops_total",
			Help: "Reservation coordinator transactions by operation and result",
		},
		[]string{"op", "result"},
	)
	CoordinatorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_coordinator_duration_seconds",
			Help:    "Time spent holding inventory row locks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking state transitions by target status",
		},
		[]string{"status"},
	)
	PriceRefreshRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "price_refresh_rows_total",
			Help: "Inventory rows repriced by the refresh job",
		},
	)
	PriceRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_refresh_duration_seconds",
			Help:    "Duration of a full price refresh run",
			Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
		},
	)
)

// Middleware records request count and latency per route template.
func Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().URL.Path == "/metrics" {
			return next(c)
		}
		start := time.Now()
		err := next(c)
		if err != nil {
			// let echo write the response so the status is final
			c.Error(err)
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Response().Status)
		RequestTotal.WithLabelValues(c.Request().Method, path, status).Inc()
		RequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
		return nil
	}
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
