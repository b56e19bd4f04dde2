// Package api exposes a read-only HTTP surface over the running daemon:
// health/readiness, a per-queue config snapshot, and a live stats stream.
// It never accepts task submissions — that is the submission-side
// scheduler's job, out of scope for this module.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/procrastinator/procrastinator/internal/queue"
	"github.com/procrastinator/procrastinator/internal/store"
	"github.com/procrastinator/procrastinator/internal/worker"
)

// Handler serves the admin HTTP API.
type Handler struct {
	manager *worker.QueueManager
	queues  []*queue.Queue
	store   store.Store
	logger  *slog.Logger
}

// NewHandler constructs a Handler. manager and store back the
// introspection endpoints; queues is the full registered set, in the
// order they should be listed.
func NewHandler(manager *worker.QueueManager, queues []*queue.Queue, st store.Store, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, queues: queues, store: st, logger: logger}
}

// RegisterRoutes registers every admin endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	queues := r.Group("/queues")
	{
		queues.GET("", h.ListQueues)
		queues.GET("/:name/stats", h.QueueStats)
		queues.GET("/:name/stream", h.StreamQueueStats)
	}
}

// Healthz reports whether the process is up. It never touches the store.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

// Readyz reports whether the configured store is reachable, by issuing a
// cheap one-row Read against the first registered queue.
func (h *Handler) Readyz(c *gin.Context) {
	if len(h.queues) == 0 {
		c.JSON(200, gin.H{"status": "ready"})
		return
	}

	if _, err := h.store.Read(context.Background(), h.queues[0].Name(), 1); err != nil {
		h.logger.Error("readyz: store unreachable", "error", err)
		c.JSON(503, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"status": "ready"})
}
