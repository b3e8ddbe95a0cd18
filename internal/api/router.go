package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/dashboard"
	"classroll/internal/directory"
	"classroll/internal/httpmiddleware"
	"classroll/internal/insights"
	"classroll/internal/metrics"
	"classroll/internal/queue"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the HTTP layer needs. Queue, Limiter,
// Metrics, MetricsHandler and CORSOrigins are optional.
type Deps struct {
	Store          *attendance.Store
	Directory      *directory.Directory
	Signer         *auth.Signer
	Insights       *insights.Service
	Dashboards     dashboard.Registry
	Queue          queue.Queue
	Limiter        *httpmiddleware.TokenBucket
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Health         map[string]HealthCheck
	Log            zerolog.Logger
	Now            func() time.Time
	CORSOrigins    []string
	Production     bool
}

// NewRouter wires middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Dashboards == nil {
		d.Dashboards = dashboard.Default()
	}
	h := &handler{Deps: d, log: d.Log.With().Str("component", "api").Logger()}

	r := gin.New()
	r.Use(recoveryMiddleware(h.log))
	r.Use(loggingMiddleware(h.log, "/healthz", "/metrics"))
	r.Use(corsMiddleware(d.CORSOrigins))
	r.Use(securityHeaders(d.Production))
	r.Use(d.Metrics.GinMiddleware())
	if d.Limiter != nil {
		r.Use(d.Limiter.GinMiddleware(nil))
	}

	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}
	r.GET("/healthz", h.healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.login)
	v1.POST("/auth/refresh", h.refresh)

	authed := v1.Group("", auth.SessionAuth(d.Signer))
	authed.GET("/me", h.me)
	authed.GET("/users", auth.RequireRole(string(directory.RoleAdmin), string(directory.RoleTeacher)), h.listUsers)
	authed.GET("/attendance", h.listAttendance)
	authed.POST("/attendance", h.markAttendance)
	authed.DELETE("/attendance", auth.RequireRole(string(directory.RoleAdmin)), h.resetAttendance)
	authed.GET("/attendance/summary", h.summary)
	authed.GET("/dashboard", h.dashboard)
	authed.GET("/insights", h.insight)

	return r
}

func (h *handler) healthz(c *gin.Context) {
	checks := gin.H{}
	status := http.StatusOK
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		checks[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks, "records": h.Store.Len()})
}
