// Package middleware provides gin middleware for the probe API:
// API-key authentication and per-identity rate limiting. Probe runs
// are expensive (a browser page, archive polling), so both guards sit
// in front of every probing endpoint.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leakgate/models"
)

// identityKey is the gin context key under which Auth stores the
// caller identity for the rate limiter.
const identityKey = "caller_identity"

// Auth returns API-key authentication middleware. Keys are accepted
// from either header:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// An empty key list disables authentication; requests then pass
// through and are rate-limited by client IP instead.
func Auth(apiKeys []string) gin.HandlerFunc {
	valid := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			valid = append(valid, []byte(k))
		}
	}
	if len(valid) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := callerKey(c)
		if key == "" {
			unauthorized(c, "missing API key: provide X-API-Key or Authorization: Bearer <key>")
			return
		}
		if !keyMatches(valid, key) {
			unauthorized(c, "invalid API key")
			return
		}
		c.Set(identityKey, key)
		c.Next()
	}
}

// keyMatches compares the presented key against every configured key
// in constant time.
func keyMatches(valid [][]byte, key string) bool {
	presented := []byte(key)
	matched := false
	for _, k := range valid {
		if len(k) == len(presented) &&
			subtle.ConstantTimeCompare(k, presented) == 1 {
			matched = true
		}
	}
	return matched
}

// callerKey extracts the API key, preferring X-API-Key over the
// Authorization header.
func callerKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	const bearer = "Bearer "
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, bearer) {
		return auth[len(bearer):]
	}
	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ProbeResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
