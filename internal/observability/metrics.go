// Package observability holds the Prometheus collectors and HTTP middleware
// for request and operation metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cargohold_http_requests_total",
			Help: "Total number of HTTP requests by method, path and status code",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cargohold_http_request_duration_seconds",
			Help:    "HTTP request duration by method and path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cargohold_operations_total",
			Help: "Total number of cargo operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	itemsPlaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cargohold_items_placed_total",
			Help: "Total number of placement decisions produced",
		},
	)

	itemsRetrieved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cargohold_items_retrieved_total",
			Help: "Total number of item retrievals",
		},
	)
)

// RecordOperation counts a cargo operation outcome ("ok" or "error").
func RecordOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordPlacements counts placement decisions.
func RecordPlacements(n int) {
	itemsPlaced.Add(float64(n))
}

// RecordRetrieval counts one retrieval.
func RecordRetrieval() {
	itemsRetrieved.Inc()
}

// Middleware returns an echo middleware that records request counts and
// durations. The route pattern is used as the path label so IDs do not
// explode cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
