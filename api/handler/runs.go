package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/leakgate/models"
)

// ListRuns returns a handler for GET /api/v1/runs.
// Query params: target (filter), limit.
func ListRuns(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.History == nil {
			historyDisabled(c)
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		runs, err := d.History.ListRuns(c.Request.Context(), c.Query("target"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInternal,
					Message: err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id. It answers from
// the report cache when possible and falls back to history.
func GetRun(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("id")

		if d.Cache != nil {
			if report, ok := d.Cache.GetRun(runID); ok {
				c.JSON(http.StatusOK, models.ProbeResponse{
					Success:     true,
					Report:      report,
					CacheStatus: "hit",
				})
				return
			}
		}
		if d.History == nil {
			historyDisabled(c)
			return
		}

		report, err := d.History.GetRun(c.Request.Context(), runID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInternal,
					Message: err.Error(),
				},
			})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "run not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, models.ProbeResponse{Success: true, Report: report})
	}
}

// CompareRuns returns a handler for GET /api/v1/runs/:id/compare/:other.
// The diff is keyed by stable finding IDs, so it answers "what changed
// between these two probes of the same target".
func CompareRuns(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.History == nil {
			historyDisabled(c)
			return
		}
		diff, err := d.History.CompareRuns(c.Request.Context(),
			c.Param("id"), c.Param("other"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInternal,
					Message: err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusOK, diff)
	}
}

func historyDisabled(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": models.ErrorDetail{
			Code:    models.ErrCodeInvalidInput,
			Message: "run history is disabled on this server",
		},
	})
}
