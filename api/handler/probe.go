package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/leakgate/cache"
	"github.com/use-agent/leakgate/models"
)

// Probe returns a handler for POST /api/v1/probe.
//
// Flow:
//  1. Parse & validate request.
//  2. Cache lookup by target key (when max_age_ms is set).
//  3. Full probe run (browser session + HTTP channels).
//  4. Respond with the report envelope.
func Probe(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ProbeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ProbeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		if d.Cache != nil && req.MaxAgeMs > 0 {
			key := cache.TargetKey(req.URL, req.DisableArchive)
			maxAge := time.Duration(req.MaxAgeMs) * time.Millisecond
			if cached, hit := d.Cache.GetTarget(key, maxAge); hit {
				c.JSON(http.StatusOK, models.ProbeResponse{
					Success:     true,
					Report:      cached,
					CacheStatus: "hit",
					ElapsedMs:   time.Since(start).Milliseconds(),
				})
				return
			}
		}

		report, err := d.runProbe(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err, time.Since(start))
			return
		}

		resp := models.ProbeResponse{
			Success:   true,
			Report:    report,
			ElapsedMs: time.Since(start).Milliseconds(),
		}
		if req.MaxAgeMs > 0 {
			resp.CacheStatus = "miss"
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a ProbeError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, elapsed time.Duration) {
	probeErr, ok := err.(*models.ProbeError)
	if !ok {
		probeErr = models.NewProbeError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(probeErr), models.ProbeResponse{
		Success:   false,
		Error:     probeErr.ToDetail(),
		ElapsedMs: elapsed.Milliseconds(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ProbeError) int {
	switch e.Code {
	case models.ErrCodeScanTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidTarget, models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
