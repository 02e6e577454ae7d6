package models

import (
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Baseline is the teaser measurement of the unmodified target page,
// captured once before any bypass attempt. Word and byte counts of zero
// mean the baseline is unknown (navigation failed or was skipped).
type Baseline struct {
	Words int `json:"words"`
	Bytes int `json:"bytes"`
}

// Known reports whether the baseline was actually captured.
func (b Baseline) Known() bool { return b.Bytes > 0 }

// Target is the shared context for one probe run. It is immutable after
// construction except for the teaser baseline, which is set exactly once
// by the orchestrator before any content channel runs.
type Target struct {
	// URL is the target page. Required.
	URL string

	// UserAgent overrides the default browser user agent when non-empty.
	UserAgent string

	// RequestTimeout bounds each individual network fetch.
	RequestTimeout time.Duration

	baselineOnce sync.Once
	baseline     Baseline
}

// NewTarget validates the raw URL and builds a Target.
// Only http/https targets are accepted.
func NewTarget(rawURL, userAgent string, requestTimeout time.Duration) (*Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewProbeError(ErrCodeInvalidTarget, "target URL does not parse", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewProbeError(ErrCodeInvalidTarget,
			fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return nil, NewProbeError(ErrCodeInvalidTarget, "target URL has no host", nil)
	}
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &Target{
		URL:            u.String(),
		UserAgent:      userAgent,
		RequestTimeout: requestTimeout,
	}, nil
}

// SetBaseline records the teaser baseline. Only the first call has any
// effect; later calls are silently ignored so a reload can never shift
// the comparison floor mid-run.
func (t *Target) SetBaseline(b Baseline) {
	t.baselineOnce.Do(func() { t.baseline = b })
}

// Baseline returns the recorded teaser baseline (zero value if unset).
func (t *Target) Baseline() Baseline { return t.baseline }

// Host returns the hostname of the target URL.
func (t *Target) Host() string {
	u, err := url.Parse(t.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
