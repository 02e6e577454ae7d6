package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/leakgate/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReport(runID string, findingIDs ...string) *models.RunReport {
	report := &models.RunReport{
		RunID:       runID,
		TargetURL:   "https://example.com/story",
		GeneratedAt: time.Now().UTC(),
	}
	for _, id := range findingIDs {
		report.Findings = append(report.Findings, models.Finding{
			ID:          id,
			Channel:     "jsonapi",
			Title:       "Unauthenticated JSON endpoint serves full article",
			Severity:    models.SeverityCritical,
			Fingerprint: "fp-" + id,
		})
	}
	return report
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	report := sampleReport("run-1", "jsonapi:aaa", "jsonapi:bbb")
	if err := db.SaveRun(ctx, report); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("stored run not found")
	}
	if got.RunID != "run-1" || len(got.Findings) != 2 {
		t.Errorf("round trip lost data: %+v", got)
	}
	if got.Findings[0].ID != "jsonapi:aaa" {
		t.Errorf("finding order not preserved: %+v", got.Findings)
	}
}

func TestGetRun_Missing(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("missing run should be nil, got %+v", got)
	}
}

func TestListRuns_FilterAndOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	older := sampleReport("run-old", "jsonapi:aaa")
	older.GeneratedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleReport("run-new", "jsonapi:aaa", "dom:bbb")
	other := sampleReport("run-other")
	other.TargetURL = "https://other.example.org/"

	for _, r := range []*models.RunReport{older, newer, other} {
		if err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("SaveRun(%s): %v", r.RunID, err)
		}
	}

	runs, err := db.ListRuns(ctx, "https://example.com/story", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-new" || runs[1].RunID != "run-old" {
		t.Errorf("runs not newest-first: %+v", runs)
	}
	if runs[0].Findings != 2 || runs[0].MaxSeverity != "Critical" {
		t.Errorf("summary fields wrong: %+v", runs[0])
	}
}

func TestCompareRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveRun(ctx, sampleReport("run-1", "jsonapi:aaa", "dom:bbb")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := db.SaveRun(ctx, sampleReport("run-2", "dom:bbb", "archive:ccc")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	diff, err := db.CompareRuns(ctx, "run-1", "run-2")
	if err != nil {
		t.Fatalf("CompareRuns: %v", err)
	}
	if len(diff.Added) != 1 || diff.Added[0] != "archive:ccc" {
		t.Errorf("added = %v, want [archive:ccc]", diff.Added)
	}
	if len(diff.Resolved) != 1 || diff.Resolved[0] != "jsonapi:aaa" {
		t.Errorf("resolved = %v, want [jsonapi:aaa]", diff.Resolved)
	}
	if len(diff.Persisting) != 1 || diff.Persisting[0] != "dom:bbb" {
		t.Errorf("persisting = %v, want [dom:bbb]", diff.Persisting)
	}
}

func TestSaveRun_DuplicateRunIDRejected(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveRun(ctx, sampleReport("run-1")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := db.SaveRun(ctx, sampleReport("run-1")); err == nil {
		t.Error("duplicate run id should be rejected")
	}
}
