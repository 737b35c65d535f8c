// Package httpapi exposes the job management endpoints over gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dynsched/internal/jobstore"
	"dynsched/internal/scheduler"
)

// Scheduler is the part of the engine the API drives.
type Scheduler interface {
	ScheduleJob(def scheduler.JobDefinition) error
	UpdateJob(def scheduler.JobDefinition) error
	CancelJob(name string) error
	Job(name string) (scheduler.JobInfo, error)
	Jobs() []scheduler.JobInfo
}

// Handler serves the scheduler API.
type Handler struct {
	sched        Scheduler
	store        jobstore.Store
	log          *slog.Logger
	storeTimeout time.Duration
}

// Option configures Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithStoreTimeout bounds each store call made by a request.
func WithStoreTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.storeTimeout = d
		}
	}
}

// New creates the API handler.
func New(sched Scheduler, store jobstore.Store, opts ...Option) *Handler {
	h := &Handler{
		sched:        sched,
		store:        store,
		log:          slog.Default(),
		storeTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	h.log = h.log.With("component", "httpapi")
	return h
}

// Router builds the gin engine with all routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", h.health)

	g := r.Group("/scheduler")
	g.POST("/add-job", h.addJob)
	g.POST("/update-job", h.updateJob)
	g.POST("/cancel-job/:jobName", h.cancelJob)
	g.GET("/jobs", h.listJobs)
	g.GET("/jobs/:jobName", h.getJob)
	return r
}

// Server wraps the router into an http.Server.
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (h *Handler) storeCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.storeTimeout)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		switch {
		case status >= 500:
			h.log.Error("request failed", attrs...)
		case status >= 400:
			h.log.Warn("request rejected", attrs...)
		default:
			h.log.Debug("request", attrs...)
		}
	}
}
