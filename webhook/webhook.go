// Package webhook notifies external endpoints when probe runs finish,
// so findings can feed ticketing or alerting pipelines.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/leakgate/models"
)

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	TargetURL string `json:"target_url"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// RunSummary is the run.completed payload body: enough to triage
// without fetching the full report.
type RunSummary struct {
	Findings    int            `json:"findings"`
	MaxSeverity string         `json:"max_severity,omitempty"`
	BySeverity  map[string]int `json:"by_severity,omitempty"`
	TimedOut    bool           `json:"timed_out,omitempty"`
}

// NewRunCompleted builds the event for a finished run.
func NewRunCompleted(report *models.RunReport) *Event {
	summary := RunSummary{
		Findings:   len(report.Findings),
		BySeverity: report.CountBySeverity(),
		TimedOut:   report.TimedOut,
	}
	if sev, ok := report.MaxSeverity(); ok {
		summary.MaxSeverity = sev.String()
	}
	return &Event{
		Type:      EventRunCompleted,
		RunID:     report.RunID,
		TargetURL: report.TargetURL,
		Timestamp: report.GeneratedAt.Unix(),
		Data:      summary,
	}
}

// deliverTimeout bounds one delivery attempt.
const deliverTimeout = 10 * time.Second

// retrySchedule is the wait before each attempt after the first.
var retrySchedule = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}

// Deliver posts one event to the endpoint. When secret is non-empty
// the body is signed and the signature sent as
// X-Leakgate-Signature: sha256=<hex>.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: encode %s event: %w", event.Type, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Leakgate-Webhook/1.0")
	if secret != "" {
		req.Header.Set("X-Leakgate-Signature", "sha256="+sign(payload, secret))
	}

	resp, err := (&http.Client{Timeout: deliverTimeout}).Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post %s: %w", event.Type, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint answered %d", resp.StatusCode)
	}
	return nil
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// DeliverAsync posts the event from a goroutine, retrying on the
// retrySchedule before giving up. Failures are logged, never
// propagated: a dead webhook endpoint must not affect probe runs.
func DeliverAsync(url, secret string, event *Event) {
	go func() {
		attempt := 0
		for {
			ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
			err := Deliver(ctx, url, secret, event)
			cancel()

			attempt++
			if err == nil {
				slog.Info("webhook delivered",
					"event", event.Type, "run_id", event.RunID, "attempt", attempt)
				return
			}
			if attempt > len(retrySchedule) {
				slog.Error("webhook delivery abandoned",
					"event", event.Type, "run_id", event.RunID, "error", err)
				return
			}
			slog.Warn("webhook delivery retrying",
				"event", event.Type, "run_id", event.RunID,
				"attempt", attempt, "error", err)
			time.Sleep(retrySchedule[attempt-1])
		}
	}()
}
