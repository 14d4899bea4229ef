package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	authEvents *prometheus.CounterVec
	rowWrites  *prometheus.CounterVec
}

// newMetrics registers collectors on registry, or on a fresh registry with runtime collectors when nil.
func newMetrics(registry *prometheus.Registry) *metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usd",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "usd",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usd",
			Name:      "auth_events_total",
			Help:      "Auth endpoint outcomes.",
		}, []string{"event", "outcome"}),
		rowWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usd",
			Name:      "rows_written_total",
			Help:      "Rows inserted or deleted through the table endpoints.",
		}, []string{"table", "operation"}),
	}
	registry.MustRegister(m.requests, m.latency, m.authEvents, m.rowWrites)
	return m
}

func (m *metrics) middleware(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
	}

	route := c.Route().Path
	m.requests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(c.Method(), route).Observe(time.Since(started).Seconds())
	return err
}

func (m *metrics) handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *metrics) authEvent(event string, outcome string) {
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

func (m *metrics) rowsWritten(table string, operation string, count int) {
	if count <= 0 {
		return
	}
	m.rowWrites.WithLabelValues(table, operation).Add(float64(count))
}
