// Package telemetry exposes Prometheus metrics for notification delivery,
// reminder sweeps and the HTTP server.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carenotify"

// Result label values.
const (
	ResultDelivered = "delivered"
	ResultDropped   = "dropped"
	ResultSent      = "sent"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing, so components can be built without one in tests.
type Metrics struct {
	registry *prometheus.Registry

	notificationsCreated *prometheus.CounterVec
	push                 *prometheus.CounterVec
	email                *prometheus.CounterVec
	sweepDuration        prometheus.Histogram
	remindersDispatched  prometheus.Counter
	liveChannels         prometheus.Gauge
	httpDuration         *prometheus.HistogramVec
	httpInFlight         prometheus.Gauge
}

// New registers the service collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		notificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications persisted, by category.",
		}, []string{"category"}),
		push: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_total",
			Help:      "Live channel push attempts, by result.",
		}, []string{"result"}),
		email: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_total",
			Help:      "Reminder e-mail attempts, by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of reminder sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		remindersDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatched_total",
			Help:      "Medication reminders dispatched in-app.",
		}),
		liveChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_channels",
			Help:      "Users with a bound live channel.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
	reg.MustRegister(
		m.notificationsCreated, m.push, m.email, m.sweepDuration,
		m.remindersDispatched, m.liveChannels, m.httpDuration, m.httpInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) NotificationCreated(category string) {
	if m == nil {
		return
	}
	m.notificationsCreated.WithLabelValues(category).Inc()
}

func (m *Metrics) Push(delivered bool) {
	if m == nil {
		return
	}
	result := ResultDropped
	if delivered {
		result = ResultDelivered
	}
	m.push.WithLabelValues(result).Inc()
}

func (m *Metrics) Email(result string) {
	if m == nil {
		return
	}
	m.email.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSweep(d time.Duration, dispatched int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
	m.remindersDispatched.Add(float64(dispatched))
}

func (m *Metrics) SetLiveChannels(n int) {
	if m == nil {
		return
	}
	m.liveChannels.Set(float64(n))
}

// Middleware records request latency labelled by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.httpInFlight.Inc()
			start := time.Now()
			err := next(c)
			m.httpInFlight.Dec()

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	if m == nil {
		return echo.WrapHandler(promhttp.Handler())
	}
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
