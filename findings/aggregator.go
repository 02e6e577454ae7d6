// Package findings assembles the append-only finding sequence of a
// probe run and owns the mapping from positive candidates to findings.
package findings

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/leakgate/fingerprint"
	"github.com/use-agent/leakgate/models"
	"github.com/use-agent/leakgate/store"
)

// severityDefaults is the fixed per-channel severity table. The channel
// that needed the least request variation to reach the content ranks
// highest: a leaky JSON endpoint serves anyone, an archive snapshot only
// proves a third party got there once.
var severityDefaults = map[string]models.Severity{
	"dom":       models.SeverityHigh,
	"hydration": models.SeverityCritical,
	"jsonapi":   models.SeverityCritical,
	"altview":   models.SeverityHigh,
	"intercept": models.SeverityHigh,
	"uamatrix":  models.SeverityMedium,
	"archive":   models.SeverityLow,
}

// titleTemplates names each channel's exposure in report language.
var titleTemplates = map[string]string{
	"dom":       "Full article text present in rendered DOM",
	"hydration": "Full article body embedded in hydration payload",
	"jsonapi":   "Unauthenticated JSON endpoint serves full article",
	"altview":   "Alternate view variant serves full article",
	"intercept": "Intercepted network response carries full article",
	"uamatrix":  "Full article served to varied request identity",
	"archive":   "Archive snapshot holds full article",
}

// DefaultSeverity returns the fixed default severity for a channel name.
func DefaultSeverity(channel string) models.Severity {
	if sev, ok := severityDefaults[channel]; ok {
		return sev
	}
	return models.SeverityInfo
}

// Aggregator turns positively classified candidates into findings and
// keeps the run's ordered finding sequence. Appended findings are never
// edited or removed. Safe for concurrent use by parallel channels.
type Aggregator struct {
	store *store.Store

	mu       sync.Mutex
	findings []models.Finding
}

// New creates an Aggregator persisting artifacts through the given store.
func New(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Record persists the candidate's content and appends one finding.
// The artifact write is always attempted before the finding is appended,
// so a finding can only ever reference an artifact whose write was at
// least attempted. If the write fails the finding still stands, flagged
// EvidenceUnavailable, and the failure is logged: the exposure was
// observed whether or not the copy landed on disk.
func (a *Aggregator) Record(cand models.RawCandidate, sig models.Signal, plainText string) models.Finding {
	ref, err := a.store.Put(cand.Body, cand.ContentType, plainText)

	f := models.Finding{
		ID:           fmt.Sprintf("%s:%s", cand.Channel, fingerprint.Short(ref.Fingerprint)),
		Channel:      cand.Channel,
		Title:        titleFor(cand.Channel),
		Severity:     DefaultSeverity(cand.Channel),
		Fingerprint:  ref.Fingerprint,
		ArtifactPath: ref.Path,
		DetectedAt:   time.Now().UTC(),
		Evidence: models.Evidence{
			SourceURL: cand.SourceURL,
			Method:    cand.Method,
			Note:      cand.Note,
			Signal:    sig,
		},
	}
	f.SeverityText = f.Severity.String()
	f.NearDuplicateOf = ref.NearDuplicateOf

	if err != nil {
		f.ArtifactPath = ""
		f.EvidenceUnavailable = true
		slog.Warn("artifact write failed, finding kept without stored evidence",
			"channel", cand.Channel,
			"fingerprint", fingerprint.Short(ref.Fingerprint),
			"error", err,
		)
	}

	a.mu.Lock()
	a.findings = append(a.findings, f)
	a.mu.Unlock()

	return f
}

// Findings returns a copy of the ordered finding sequence.
func (a *Aggregator) Findings() []models.Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Finding, len(a.findings))
	copy(out, a.findings)
	return out
}

// Count returns the number of appended findings.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.findings)
}

func titleFor(channel string) string {
	if t, ok := titleTemplates[channel]; ok {
		return t
	}
	return "Content exposure via " + channel
}
