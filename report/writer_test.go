package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/leakgate/models"
)

// createTestReport builds a run report with one finding per interesting
// state: a stored artifact, a failed artifact write, a near-duplicate.
func createTestReport() *models.RunReport {
	sig := models.Signal{
		ByteLength:           14000,
		WordCount:            1500,
		ParagraphCount:       18,
		HeadingCount:         4,
		HasSemanticContainer: true,
		TextDensity:          0.64,
		Markup:               true,
		Verdict:              true,
		Score:                models.ScoreHigh,
	}
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	return &models.RunReport{
		RunID:       "0f6d8b1a-test",
		TargetURL:   "https://example.com/news/story",
		GeneratedAt: now,
		Baseline:    models.Baseline{Words: 180, Bytes: 1400},
		Findings: []models.Finding{
			{
				ID:       "jsonapi:abcdef123456",
				Channel:  "jsonapi",
				Title:    "Unauthenticated JSON endpoint serves full article",
				Severity: models.SeverityCritical,
				Evidence: models.Evidence{
					SourceURL: "https://example.com/news/story.json",
					Method:    "GET",
					Signal:    sig,
				},
				Fingerprint:  strings.Repeat("ab", 32),
				ArtifactPath: "/tmp/artifacts/abcdef.html",
				DetectedAt:   now,
			},
			{
				ID:       "dom:123456abcdef",
				Channel:  "dom",
				Title:    "Full article text present in rendered DOM",
				Severity: models.SeverityHigh,
				Evidence: models.Evidence{
					SourceURL: "https://example.com/news/story",
					Method:    "EVAL",
					Signal:    sig,
				},
				Fingerprint:         strings.Repeat("cd", 32),
				EvidenceUnavailable: true,
				DetectedAt:          now,
			},
		},
		Channels: []models.ChannelOutcome{
			{Channel: "dom", Status: models.ChannelSuccess, Candidates: 1, Findings: 1},
			{Channel: "jsonapi", Status: models.ChannelSuccess, Candidates: 1, Findings: 1},
			{Channel: "altview", Status: models.ChannelNegative, Candidates: 0},
			{Channel: "archive", Status: models.ChannelInconclusive, Reason: "snapshot submission failed"},
		},
		Artifacts: map[string]string{
			strings.Repeat("ab", 32): "/tmp/artifacts/abcdef.html",
		},
	}
}

func TestConsoleWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewConsoleWriter(&buf)

	if _, err := w.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"https://example.com/news/story",
		"Teaser baseline: 180 words / 1400 bytes",
		"Unauthenticated JSON endpoint serves full article",
		"evidence unavailable",
		"snapshot submission failed",
		"Findings: 2",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("console output missing %q", want)
		}
	}
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)

	if _, err := w.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"# Content Exposure Report",
		"## Severity Summary",
		"## Channel Outcomes",
		"jsonapi:abcdef123456",
		"inconclusive",
		"## Stored Artifacts",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestMarkdownWriter_EmptyRun(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)
	report := &models.RunReport{
		RunID:       "empty",
		TargetURL:   "https://example.com/",
		GeneratedAt: time.Now(),
	}

	if _, err := w.Write(report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No findings.") {
		t.Error("empty run should still render a well-formed report")
	}
}

func TestJSONWriter_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewJSONWriter(&buf, WithPrettyPrint())
	report := createTestReport()

	if _, err := w.Write(report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded models.RunReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.RunID != report.RunID || len(decoded.Findings) != 2 {
		t.Errorf("round trip lost data: %+v", decoded)
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	mw := NewMultiWriter(NewJSONWriter(&a), NewMarkdownWriter(&b))

	if _, err := mw.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Error("multi writer did not reach every destination")
	}
}
