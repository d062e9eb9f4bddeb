package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/dfs-lineup-client/internal/builds"
)

type HealthHandler struct {
	store *builds.Store
}

func NewHealthHandler(store *builds.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// GetHealth returns liveness status; always 200 while the server runs
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        "dfs-lineup-client",
		"time":           time.Now().UTC(),
		"builds_durable": h.store.Durable(),
	})
}
