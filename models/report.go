package models

import "time"

// ChannelStatus is the three-way outcome of one probe channel.
// A channel that found nothing and a channel that never got to look are
// deliberately kept apart in reports.
type ChannelStatus string

const (
	// ChannelSuccess means the channel ran and produced at least one
	// candidate that classified positively.
	ChannelSuccess ChannelStatus = "success"

	// ChannelNegative means the channel ran to completion and found no
	// exposed content.
	ChannelNegative ChannelStatus = "negative"

	// ChannelInconclusive means the channel failed (timeout, I/O, parse)
	// or was skipped; absence of evidence, not evidence of absence.
	ChannelInconclusive ChannelStatus = "inconclusive"
)

// ChannelOutcome records how one channel finished.
type ChannelOutcome struct {
	Channel    string        `json:"channel"`
	Status     ChannelStatus `json:"status"`
	Candidates int           `json:"candidates"`
	Findings   int           `json:"findings"`
	Reason     string        `json:"reason,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// RunReport is the terminal summary object of one probe run.
type RunReport struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// TargetURL is the probed page.
	TargetURL string `json:"target_url"`

	// GeneratedAt is the report timestamp.
	GeneratedAt time.Time `json:"generated_at"`

	// Baseline is the teaser measurement used as the comparison floor.
	Baseline Baseline `json:"baseline"`

	// Findings is the append-only ordered finding sequence.
	Findings []Finding `json:"findings"`

	// Channels records the per-channel outcomes in execution order.
	Channels []ChannelOutcome `json:"channels"`

	// Artifacts maps content fingerprints to stored artifact paths.
	Artifacts map[string]string `json:"artifacts"`

	// TimedOut is true when the run deadline expired before all
	// channels completed.
	TimedOut bool `json:"timed_out,omitempty"`
}

// CountBySeverity returns finding counts keyed by severity label.
func (r *RunReport) CountBySeverity() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Findings {
		counts[f.Severity.String()]++
	}
	return counts
}

// MaxSeverity returns the highest severity present, and false when the
// run produced no findings.
func (r *RunReport) MaxSeverity() (Severity, bool) {
	if len(r.Findings) == 0 {
		return SeverityInfo, false
	}
	max := r.Findings[0].Severity
	for _, f := range r.Findings[1:] {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max, true
}
