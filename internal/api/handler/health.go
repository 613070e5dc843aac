package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/coursegen/internal/api/middleware"
	"github.com/timmy/coursegen/internal/kvstore"
)

const storeCheckTimeout = 2 * time.Second

// healthCheckKey is never written; reading it proves the store answers.
var healthCheckKey = kvstore.Key{Owner: "_health", Entity: "ping"}

// HealthHandler reports whether the job store is reachable.
type HealthHandler struct {
	store kvstore.Store
}

func NewHealthHandler(store kvstore.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health returns 200 when the store answers and 503 otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeCheckTimeout)
	defer cancel()

	start := time.Now()
	_, err := h.store.Get(ctx, healthCheckKey)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		middleware.GetLogger(c).WithError(err).Warn("[health] job store unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"store":  "unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"store":          "ok",
		"storeLatencyMs": time.Since(start).Milliseconds(),
	})
}
