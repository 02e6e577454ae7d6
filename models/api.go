package models

import "time"

// ProbeRequest is the POST /api/v1/probe request body.
type ProbeRequest struct {
	// URL is the target page. Required.
	URL string `json:"url" binding:"required"`

	// UserAgent overrides the browser user agent for the session.
	UserAgent string `json:"user_agent"`

	// TimeoutMs bounds the whole run. Zero means the server default.
	TimeoutMs int `json:"timeout_ms"`

	// DisableArchive skips the archive channel for this run.
	DisableArchive bool `json:"disable_archive"`

	// MaxAgeMs serves a cached report for the same target if one
	// younger than this exists. Zero disables the cache lookup.
	MaxAgeMs int `json:"max_age_ms"`
}

// Timeout converts TimeoutMs, falling back to def.
func (r *ProbeRequest) Timeout(def time.Duration) time.Duration {
	if r.TimeoutMs <= 0 {
		return def
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// ProbeResponse is the probe API response envelope.
type ProbeResponse struct {
	Success     bool         `json:"success"`
	Report      *RunReport   `json:"report,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
	CacheStatus string       `json:"cache_status,omitempty"`
	ElapsedMs   int64        `json:"elapsed_ms,omitempty"`
}

// ProbeJob tracks one asynchronous probe run.
type ProbeJob struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"` // "processing", "completed", "failed"
	TargetURL string       `json:"target_url"`
	Report    *RunReport   `json:"report,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	CreatedAt int64        `json:"created_at"`
}

// HealthResponse is the GET /api/v1/health response.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	ActivePages int    `json:"active_pages"`
	MaxPages    int    `json:"max_pages"`
	Version     string `json:"version"`
}
