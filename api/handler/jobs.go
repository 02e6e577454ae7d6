package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/leakgate/models"
)

// jobStore holds in-flight and completed async probe jobs.
var jobStore sync.Map

func init() {
	// Expire jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			jobStore.Range(func(key, value any) bool {
				job := value.(*models.ProbeJob)
				if job.CreatedAt < cutoff {
					jobStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostProbeAsync returns a handler for POST /api/v1/probe/async.
// A probe run takes minutes; this variant returns a job ID immediately
// and runs in the background.
func PostProbeAsync(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		job := &models.ProbeJob{
			ID:        "probe-" + randomID(),
			Status:    "processing",
			TargetURL: req.URL,
			CreatedAt: time.Now().Unix(),
		}
		jobStore.Store(job.ID, job)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(),
				req.Timeout(d.Cfg.Probe.RunTimeout)+time.Minute)
			defer cancel()

			// Store a fresh value on completion so readers never observe
			// a half-updated job.
			done := *job
			report, err := d.runProbe(ctx, &req)
			if err != nil {
				probeErr, ok := err.(*models.ProbeError)
				if !ok {
					probeErr = models.NewProbeError(models.ErrCodeInternal, err.Error(), err)
				}
				done.Status = "failed"
				done.Error = probeErr.ToDetail()
			} else {
				done.Status = "completed"
				done.Report = report
			}
			jobStore.Store(done.ID, &done)
		}()

		c.JSON(http.StatusAccepted, gin.H{
			"id":     job.ID,
			"status": job.Status,
		})
	}
}

// GetProbeJob returns a handler for GET /api/v1/probe/async/:id.
func GetProbeJob() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := jobStore.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "probe job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, val.(*models.ProbeJob))
	}
}

// randomID returns 8 random hex bytes.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
