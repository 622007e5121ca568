package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks one backend (postgres, redis).
type Pinger = func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz pings every configured backend; memory-only deployments are always ready.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	failed := gin.H{}

	for name, ping := range h.checks {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
		err := ping(cctx)
		cancel()

		if err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": failed})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
