package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type connectionChecker interface {
	CheckConnection(ctx context.Context) error
}

// HealthCheck reports repository and storage reachability.
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"repository": "ok", "storage": "ok"}

	if err := h.Repo.Ping(ctx); err != nil {
		checks["repository"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if checker, ok := h.Store.(connectionChecker); ok {
		if err := checker.CheckConnection(ctx); err != nil {
			checks["storage"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, checks)
}
