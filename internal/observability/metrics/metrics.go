package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the metrics registry.
type Config struct {
	ServiceName string
	Environment string
}

// Registry owns every collector exposed on /metrics.
type Registry struct {
	reg        *prometheus.Registry
	registerer prometheus.Registerer
}

// NewRegistry builds an isolated registry with process and Go runtime collectors.
// Every series carries the service and env labels.
func NewRegistry(cfg Config) *Registry {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{
		"service": serviceName(cfg.ServiceName),
		"env":     strings.TrimSpace(cfg.Environment),
	}
	wrapped := prometheus.WrapRegistererWith(labels, reg)
	wrapped.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{reg: reg, registerer: wrapped}
}

func serviceName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "bukukas"
	}
	return name
}

func (r *Registry) Registerer() prometheus.Registerer {
	return r.registerer
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(r *Registry) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukukas_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bukukas_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	r.registerer.MustRegister(m.requests, m.duration)
	return m
}

// GinMiddleware records metrics for every routed request.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// BillingMetrics tracks bookkeeping writes.
type BillingMetrics struct {
	entriesWritten *prometheus.CounterVec
	entriesRemoved *prometheus.CounterVec
	rechains       prometheus.Counter
	rollovers      *prometheus.CounterVec
	failures       *prometheus.CounterVec
}

func NewBillingMetrics(r *Registry) *BillingMetrics {
	m := &BillingMetrics{
		entriesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukukas_billing_entries_written_total",
			Help: "Billing entries pushed into periods, by operation.",
		}, []string{"operation"}),
		entriesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukukas_billing_entries_removed_total",
			Help: "Billing entries pulled from periods, by operation.",
		}, []string{"operation"}),
		rechains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bukukas_billing_rechains_total",
			Help: "Schedule edits that rebuilt a chain.",
		}),
		rollovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukukas_billing_rollover_subscribers_total",
			Help: "Subscribers that received entries during fiscal year generation.",
		}, []string{"fiscal_year"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bukukas_billing_operation_failures_total",
			Help: "Failed billing operations, by operation.",
		}, []string{"operation"}),
	}
	r.registerer.MustRegister(m.entriesWritten, m.entriesRemoved, m.rechains, m.rollovers, m.failures)
	return m
}

func (m *BillingMetrics) RecordEntriesWritten(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entriesWritten.WithLabelValues(operation).Add(float64(n))
}

func (m *BillingMetrics) RecordEntriesRemoved(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entriesRemoved.WithLabelValues(operation).Add(float64(n))
}

func (m *BillingMetrics) RecordRechain() {
	if m == nil {
		return
	}
	m.rechains.Inc()
}

func (m *BillingMetrics) RecordRollover(fiscalYear, subscribers int) {
	if m == nil || subscribers <= 0 {
		return
	}
	m.rollovers.WithLabelValues(strconv.Itoa(fiscalYear)).Add(float64(subscribers))
}

func (m *BillingMetrics) RecordFailure(operation string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation).Inc()
}
