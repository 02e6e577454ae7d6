package findings

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/leakgate/models"
	"github.com/use-agent/leakgate/store"
)

func newAggregator(t *testing.T) *Aggregator {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(s)
}

func candidate(channel, body string) models.RawCandidate {
	return models.RawCandidate{
		Body:        []byte(body),
		ContentType: "text/html",
		SourceURL:   "https://example.com/story",
		Method:      "GET",
		Channel:     channel,
	}
}

func positiveSignal() models.Signal {
	return models.Signal{
		WordCount:   1500,
		TextDensity: 0.8,
		Markup:      true,
		Verdict:     true,
		Score:       models.ScoreHigh,
	}
}

func TestRecord_AppendOnlyOrder(t *testing.T) {
	a := newAggregator(t)

	var ids []string
	for i := 0; i < 3; i++ {
		f := a.Record(candidate("jsonapi", fmt.Sprintf("<article>body %d</article>", i)), positiveSignal(), "")
		ids = append(ids, f.ID)
	}

	fs := a.Findings()
	require.Len(t, fs, 3)
	for i, f := range fs {
		assert.Equal(t, ids[i], f.ID, "append order is preserved")
		assert.Equal(t, "jsonapi", f.Channel)
	}

	// The snapshot is a copy: mutating it does not touch the sequence.
	fs[0].Title = "tampered"
	assert.NotEqual(t, "tampered", a.Findings()[0].Title)
}

func TestRecord_SeverityDefaults(t *testing.T) {
	a := newAggregator(t)

	tests := []struct {
		channel string
		want    models.Severity
	}{
		{"jsonapi", models.SeverityCritical},
		{"hydration", models.SeverityCritical},
		{"dom", models.SeverityHigh},
		{"altview", models.SeverityHigh},
		{"intercept", models.SeverityHigh},
		{"uamatrix", models.SeverityMedium},
		{"archive", models.SeverityLow},
		{"unknown-channel", models.SeverityInfo},
	}
	for i, tc := range tests {
		f := a.Record(candidate(tc.channel, fmt.Sprintf("<article>severity body %d</article>", i)), positiveSignal(), "")
		assert.Equal(t, tc.want, f.Severity, tc.channel)
		assert.Equal(t, tc.want.String(), f.SeverityText, tc.channel)
	}
}

func TestRecord_StableID(t *testing.T) {
	a := newAggregator(t)
	body := "<article>the same exposed body</article>"

	first := a.Record(candidate("jsonapi", body), positiveSignal(), "")

	// A second run over the same content yields the same id, which keeps
	// repeated scans of one target comparable.
	b := newAggregator(t)
	second := b.Record(candidate("jsonapi", body), positiveSignal(), "")
	assert.Equal(t, first.ID, second.ID)

	// A different channel recovering identical bytes gets its own id.
	third := a.Record(candidate("altview", body), positiveSignal(), "")
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, first.Fingerprint, third.Fingerprint)
}

func TestRecord_SharedContentSingleArtifact(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	a := New(s)
	body := "<article>channels race to the same bytes</article>"

	a.Record(candidate("jsonapi", body), positiveSignal(), "")
	a.Record(candidate("uamatrix", body), positiveSignal(), "")

	assert.Equal(t, 2, a.Count(), "both findings are kept")
	assert.Equal(t, 1, s.Len(), "identical bytes persist exactly once")
}

func TestRecord_EvidenceSnapshot(t *testing.T) {
	a := newAggregator(t)
	cand := candidate("jsonapi", "<article>evidence body</article>")
	cand.Note = "variant https://example.com/story.json"
	sig := positiveSignal()

	f := a.Record(cand, sig, "")
	assert.Equal(t, sig, f.Evidence.Signal)
	assert.Equal(t, cand.SourceURL, f.Evidence.SourceURL)
	assert.Equal(t, cand.Note, f.Evidence.Note)
	assert.NotEmpty(t, f.ArtifactPath)
	assert.False(t, f.EvidenceUnavailable)
}

func TestRecord_ArtifactWriteFailureKeepsFinding(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	s, err := store.New(dir)
	require.NoError(t, err)
	a := New(s)

	// Replace the artifact directory with a plain file so every write
	// under it fails, whatever user the test runs as.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o640))

	f := a.Record(candidate("dom", "<article>observed but not persisted</article>"), positiveSignal(), "")

	assert.True(t, f.EvidenceUnavailable, "finding is flagged, not dropped")
	assert.Empty(t, f.ArtifactPath)
	assert.NotEmpty(t, f.Fingerprint, "fingerprint is computed before the write")
	assert.Equal(t, "dom", f.Channel)
	assert.Equal(t, models.SeverityHigh, f.Severity)

	fs := a.Findings()
	require.Len(t, fs, 1)
	assert.True(t, fs[0].EvidenceUnavailable)
}
