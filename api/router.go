// Package api wires the HTTP surface of the probe service.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/leakgate/api/handler"
	"github.com/use-agent/leakgate/api/middleware"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(d *handler.Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(d.Cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(d, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if d.Cfg.Auth.Enabled {
		protected.Use(middleware.Auth(d.Cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(d.Cfg.RateLimit))

	// Probe
	protected.POST("/probe", handler.Probe(d))
	protected.POST("/probe/async", handler.PostProbeAsync(d))
	protected.GET("/probe/async/:id", handler.GetProbeJob())

	// Run history
	protected.GET("/runs", handler.ListRuns(d))
	protected.GET("/runs/:id", handler.GetRun(d))
	protected.GET("/runs/:id/compare/:other", handler.CompareRuns(d))

	return r
}
