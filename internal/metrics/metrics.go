package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's prometheus collectors.
type Metrics struct {
	Upserts          *prometheus.CounterVec
	PersistFailures  *prometheus.CounterVec
	InsightOutcomes  *prometheus.CounterVec
	Logins           *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	RequestDurations *prometheus.HistogramVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroll",
			Name:      "attendance_upserts_total",
			Help:      "Attendance upserts by outcome (created or updated).",
		}, []string{"outcome"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroll",
			Name:      "attendance_persist_failures_total",
			Help:      "Failed loads and saves against the session store.",
		}, []string{"op"}),
		InsightOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroll",
			Name:      "insight_requests_total",
			Help:      "Insight lookups by outcome.",
		}, []string{"outcome"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroll",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classroll",
			Name:      "queue_events_dropped_total",
			Help:      "Events not published because the queue was full or unreachable.",
		}, []string{"type"}),
		RequestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "classroll",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.Upserts, m.PersistFailures, m.InsightOutcomes, m.Logins, m.EventsDropped, m.RequestDurations)
	return m
}

// Upserted implements attendance.Recorder.
func (m *Metrics) Upserted(created bool) {
	if m == nil {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.Upserts.WithLabelValues(outcome).Inc()
}

// PersistFailed implements attendance.Recorder.
func (m *Metrics) PersistFailed(op string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(op).Inc()
}

// Insight counts one insight lookup outcome.
func (m *Metrics) Insight(outcome string) {
	if m == nil {
		return
	}
	m.InsightOutcomes.WithLabelValues(outcome).Inc()
}

// Login counts one login attempt.
func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.Logins.WithLabelValues(result).Inc()
}

// EventDropped counts one event that could not be published.
func (m *Metrics) EventDropped(eventType string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(eventType).Inc()
}

// GinMiddleware observes request latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestDurations.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
