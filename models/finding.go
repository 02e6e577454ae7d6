package models

import "time"

// Severity represents the impact level of an exposure finding.
// Values are ordered so direct comparison works (Info < Low < ... < Critical).
type Severity int

const (
	// SeverityInfo marks informational results with no exposure impact.
	SeverityInfo Severity = iota

	// SeverityLow marks weak exposure signals, e.g. an archive snapshot
	// that a third party already holds.
	SeverityLow

	// SeverityMedium marks partial or indirect exposure, e.g. an
	// alternate-view variant serving more content than the teaser.
	SeverityMedium

	// SeverityHigh marks full content reachable with a trivially varied
	// request identity.
	SeverityHigh

	// SeverityCritical marks full content served to an unauthenticated
	// default client, e.g. a leaky JSON endpoint.
	SeverityCritical
)

// String returns the upper-case severity label.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Evidence is the channel-specific payload attached to a Finding.
type Evidence struct {
	// SourceURL is where the exposed content was retrieved from.
	SourceURL string `json:"source_url"`

	// Method is the HTTP method (or "EVAL" for in-page extraction).
	Method string `json:"method"`

	// Note is the channel-specific detail (selector, key path, UA/referer
	// pair, snapshot URL).
	Note string `json:"note,omitempty"`

	// Signal is the classification snapshot that produced the verdict.
	Signal Signal `json:"signal"`
}

// Finding is one confirmed content exposure. Findings are append-only
// within a run: once emitted they are never edited or removed.
type Finding struct {
	// ID is stable across runs for the same channel and content, so
	// repeated scans of one target are comparable.
	ID string `json:"id"`

	// Channel names the probe channel that produced the finding.
	Channel string `json:"channel"`

	// Title is a short human-readable description.
	Title string `json:"title"`

	// Severity is drawn from the per-channel default table.
	Severity Severity `json:"severity"`

	// SeverityText mirrors Severity for serialized reports.
	SeverityText string `json:"severity_text"`

	// Evidence carries the classification snapshot and source detail.
	Evidence Evidence `json:"evidence"`

	// Fingerprint is the sha256 hex of the exposed content bytes.
	Fingerprint string `json:"fingerprint"`

	// ArtifactPath is where the content artifact was persisted, empty
	// when persistence was not attempted.
	ArtifactPath string `json:"artifact_path,omitempty"`

	// EvidenceUnavailable is true when the artifact write was attempted
	// but failed; the finding stands, the stored copy does not exist.
	EvidenceUnavailable bool `json:"evidence_unavailable,omitempty"`

	// NearDuplicateOf holds the fingerprint of an earlier finding whose
	// content is a simhash near-duplicate of this one, if any.
	NearDuplicateOf string `json:"near_duplicate_of,omitempty"`

	// DetectedAt is when the finding was appended.
	DetectedAt time.Time `json:"detected_at"`
}
