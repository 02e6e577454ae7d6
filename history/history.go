// Package history persists probe run reports in SQLite so repeated
// runs against one target are comparable over time. Findings carry
// stable IDs, which is what makes the run-to-run diff meaningful.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/use-agent/leakgate/models"
)

// DB stores run history in a single SQLite file.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("history: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	// SQLite supports one writer; keep the pool at a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &DB{db: db, path: path}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: create tables: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (h *DB) Close() error {
	return h.db.Close()
}

func (h *DB) createTables() error {
	schema := `
	-- One row per probe run; the full report rides along as JSON.
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		target_url TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0,
		findings_count INTEGER NOT NULL DEFAULT 0,
		max_severity TEXT NOT NULL DEFAULT '',
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target_url);
	CREATE INDEX IF NOT EXISTS idx_runs_generated ON runs(generated_at);

	-- Finding IDs per run, for run-to-run comparison without
	-- deserializing whole reports.
	CREATE TABLE IF NOT EXISTS run_findings (
		run_id TEXT NOT NULL,
		finding_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		severity TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		PRIMARY KEY (run_id, finding_id)
	);

	CREATE INDEX IF NOT EXISTS idx_findings_run ON run_findings(run_id);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun persists one completed run report.
func (h *DB) SaveRun(ctx context.Context, report *models.RunReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("history: serialize report: %w", err)
	}

	maxSev := ""
	if sev, ok := report.MaxSeverity(); ok {
		maxSev = sev.String()
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, target_url, generated_at, timed_out, findings_count, max_severity, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.TargetURL,
		report.GeneratedAt.UTC().Format(time.RFC3339Nano),
		boolInt(report.TimedOut),
		len(report.Findings),
		maxSev,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}

	for _, f := range report.Findings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_findings (run_id, finding_id, channel, severity, fingerprint)
			VALUES (?, ?, ?, ?, ?)`,
			report.RunID, f.ID, f.Channel, f.Severity.String(), f.Fingerprint,
		)
		if err != nil {
			return fmt.Errorf("history: insert finding %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	TargetURL   string    `json:"target_url"`
	GeneratedAt time.Time `json:"generated_at"`
	TimedOut    bool      `json:"timed_out"`
	Findings    int       `json:"findings"`
	MaxSeverity string    `json:"max_severity,omitempty"`
}

// ListRuns returns the most recent runs, newest first. A non-empty
// targetURL filters to one target; limit <= 0 means 50.
func (h *DB) ListRuns(ctx context.Context, targetURL string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, target_url, generated_at, timed_out, findings_count, max_severity
		FROM runs`
	args := []any{}
	if targetURL != "" {
		query += ` WHERE target_url = ?`
		args = append(args, targetURL)
	}
	query += ` ORDER BY generated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var generated string
		var timedOut int
		if err := rows.Scan(&s.RunID, &s.TargetURL, &generated, &timedOut, &s.Findings, &s.MaxSeverity); err != nil {
			return nil, fmt.Errorf("history: scan run row: %w", err)
		}
		s.GeneratedAt = parseTimestamp(generated)
		s.TimedOut = timedOut != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRun retrieves one stored report by run ID. A missing run returns
// (nil, nil).
func (h *DB) GetRun(ctx context.Context, runID string) (*models.RunReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx,
		`SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: get run: %w", err)
	}

	var report models.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("history: parse stored report: %w", err)
	}
	return &report, nil
}

// Diff is the finding-level comparison of two runs against one target.
type Diff struct {
	// Added lists finding IDs present in the new run only.
	Added []string `json:"added"`

	// Resolved lists finding IDs present in the old run only.
	Resolved []string `json:"resolved"`

	// Persisting lists finding IDs present in both runs.
	Persisting []string `json:"persisting"`
}

// CompareRuns diffs two runs by stable finding ID.
func (h *DB) CompareRuns(ctx context.Context, oldRunID, newRunID string) (*Diff, error) {
	oldIDs, err := h.orderedFindingIDs(ctx, oldRunID)
	if err != nil {
		return nil, err
	}
	newIDs, err := h.orderedFindingIDs(ctx, newRunID)
	if err != nil {
		return nil, err
	}

	oldSet := make(map[string]struct{}, len(oldIDs))
	for _, id := range oldIDs {
		oldSet[id] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		newSet[id] = struct{}{}
	}

	diff := &Diff{}
	for _, id := range newIDs {
		if _, ok := oldSet[id]; ok {
			diff.Persisting = append(diff.Persisting, id)
		} else {
			diff.Added = append(diff.Added, id)
		}
	}
	for _, id := range oldIDs {
		if _, ok := newSet[id]; !ok {
			diff.Resolved = append(diff.Resolved, id)
		}
	}
	return diff, nil
}

func (h *DB) orderedFindingIDs(ctx context.Context, runID string) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT finding_id FROM run_findings WHERE run_id = ? ORDER BY finding_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: finding ids for %s: %w", runID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("history: scan finding id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// parseTimestamp handles the formats SQLite hands back.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
