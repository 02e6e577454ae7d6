package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/leakgate/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports page-pool utilisation and degrades status when > 80% of pages
// are active. A nil driver (HTTP-only server) is still healthy.
func Health(d *Deps, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, maxPages := 0, 0
		if d.Driver != nil {
			active = d.Driver.ActivePages()
			maxPages = d.Cfg.Browser.MaxPages
		}

		status := "healthy"
		if maxPages > 0 && active > int(float64(maxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			ActivePages: active,
			MaxPages:    maxPages,
			Version:     "0.1.0",
		})
	}
}
