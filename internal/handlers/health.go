package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Database    string `json:"database"`
	Cache       string `json:"cache"`
	Storage     string `json:"storage"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
	Error       string `json:"error,omitempty"`
}

// Health fails with 503 only when the database is unreachable. Cache and
// storage problems are reported but do not fail the check.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Success:     true,
		Message:     "Atar Youth Association API is running",
		Database:    "Connected",
		Environment: h.cfg.Environment,
		Timestamp:   h.now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if err := probe(ctx, h.health.Database); err != nil {
		h.log.Error().Err(err).Msg("database ping failed")
		status = http.StatusServiceUnavailable
		resp.Success = false
		resp.Message = "Database connection failed"
		resp.Database = "Disconnected"
		if h.cfg.IsDevelopment() {
			resp.Error = err.Error()
		}
	}

	resp.Cache = h.component(ctx, "cache", h.health.Cache)
	resp.Storage = h.component(ctx, "storage", h.health.Storage)

	c.JSON(status, resp)
}

func (h HandlerSet) component(ctx context.Context, name string, check Check) string {
	if check == nil {
		return "disabled"
	}
	if err := check(ctx); err != nil {
		h.log.Warn().Err(err).Str("component", name).Msg("health check failed")
		return "error"
	}
	return "ok"
}

func probe(ctx context.Context, check Check) error {
	if check == nil {
		return nil
	}
	return check(ctx)
}
