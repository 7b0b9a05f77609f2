package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API, worker, and sync flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	ordersForwardedTotal    *prometheus.CounterVec
	orderForwardFailedTotal *prometheus.CounterVec
	providerCallDuration    *prometheus.HistogramVec
	workerInflight          *prometheus.GaugeVec
	retryScheduledTotal     *prometheus.CounterVec
	statusSyncTotal         *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smm_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smm_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ordersForwardedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smm_engine",
				Name:      "orders_forwarded_total",
				Help:      "Total number of orders successfully placed upstream.",
			},
			[]string{"provider"},
		),
		orderForwardFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smm_engine",
				Name:      "order_forward_failed_total",
				Help:      "Total number of orders that ended in failed state.",
			},
			[]string{"provider", "reason"},
		),
		providerCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smm_engine",
				Name:      "provider_call_duration_seconds",
				Help:      "Upstream provider call duration in seconds by provider and operation.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider", "operation"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "smm_engine",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight forwarding operations by provider.",
			},
			[]string{"provider"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smm_engine",
				Name:      "retry_scheduled_total",
				Help:      "Total number of orders scheduled for a forwarding retry.",
			},
			[]string{"provider"},
		),
		statusSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smm_engine",
				Name:      "status_sync_total",
				Help:      "Total number of status-sync updates applied by provider and resulting status.",
			},
			[]string{"provider", "status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.ordersForwardedTotal,
		m.orderForwardFailedTotal,
		m.providerCallDuration,
		m.workerInflight,
		m.retryScheduledTotal,
		m.statusSyncTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncOrderForwarded(provider string) {
	if m == nil {
		return
	}
	m.ordersForwardedTotal.WithLabelValues(normalizeProvider(provider)).Inc()
}

func (m *Metrics) IncOrderForwardFailed(provider string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.orderForwardFailedTotal.WithLabelValues(normalizeProvider(provider), reasonLabel).Inc()
}

func (m *Metrics) ObserveProviderCallDuration(provider string, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerCallDuration.WithLabelValues(normalizeProvider(provider), operation).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(provider string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeProvider(provider)).Inc()
}

func (m *Metrics) DecWorkerInFlight(provider string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeProvider(provider)).Dec()
}

func (m *Metrics) IncRetryScheduled(provider string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeProvider(provider)).Inc()
}

func (m *Metrics) IncStatusSync(provider string, status string) {
	if m == nil {
		return
	}
	m.statusSyncTotal.WithLabelValues(normalizeProvider(provider), strings.ToLower(status)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeProvider(provider string) string {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
