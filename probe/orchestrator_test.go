package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/leakgate/classify"
	"github.com/use-agent/leakgate/findings"
	"github.com/use-agent/leakgate/models"
	"github.com/use-agent/leakgate/store"
)

// fakeSession is a canned browser session. It records the order of
// calls so tests can assert the mutation-before-read constraint, and it
// answers selector evaluations from a selector -> text map.
type fakeSession struct {
	html      string
	selectors map[string]string
	globals   map[string]any
	captures  []models.NetCapture
	navErr    error

	calls []string
}

func (f *fakeSession) Navigate(ctx context.Context, targetURL, userAgent string) error {
	f.calls = append(f.calls, "navigate")
	return f.navErr
}

func (f *fakeSession) HTML() (string, error) {
	f.calls = append(f.calls, "html")
	return f.html, nil
}

func (f *fakeSession) EvalText(js string) string {
	f.calls = append(f.calls, "eval")
	for sel, text := range f.selectors {
		if strings.Contains(js, fmt.Sprintf("%q", sel)) {
			if strings.Contains(js, "outerHTML") {
				return "<article>" + text + "</article>"
			}
			return text
		}
	}
	for name, v := range f.globals {
		if strings.Contains(js, `window["`+name+`"]`) {
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	return ""
}

func (f *fakeSession) RemoveOverlays() {
	f.calls = append(f.calls, "remove_overlays")
}

func (f *fakeSession) ClearState() error {
	f.calls = append(f.calls, "clear_state")
	return nil
}

func (f *fakeSession) DrainCaptures() []models.NetCapture {
	f.calls = append(f.calls, "drain_captures")
	return f.captures
}

func (f *fakeSession) Release() {
	f.calls = append(f.calls, "release")
}

func newOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if opts.RunTimeout == 0 {
		opts.RunTimeout = 30 * time.Second
	}
	opts.DisableArchive = true
	return New(classify.New(nil), testClient(t), st, opts)
}

func outcomeFor(t *testing.T, report *models.RunReport, channel string) models.ChannelOutcome {
	t.Helper()
	for _, o := range report.Channels {
		if o.Channel == channel {
			return o
		}
	}
	t.Fatalf("no outcome recorded for channel %q", channel)
	return models.ChannelOutcome{}
}

func TestDOMChannel_PicksLargestSelector(t *testing.T) {
	sess := &fakeSession{
		selectors: map[string]string{
			"main":    articleText(50),
			"article": articleText(1400),
		},
	}
	ch := NewDOM(sess)
	res := ch.Probe(context.Background(), testTarget(t, "https://example.com/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	if res.Candidates[0].Note != "selector article" {
		t.Errorf("note = %q, want the article selector to win", res.Candidates[0].Note)
	}
}

func TestHydrationChannel_NextDataPayload(t *testing.T) {
	payload := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"article": map[string]any{
					"articleBody": articleText(1400),
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	sess := &fakeSession{
		html: `<html><body><script id="__NEXT_DATA__" type="application/json">` +
			string(raw) + `</script></body></html>`,
	}

	ch := NewHydration(sess)
	res := ch.Probe(context.Background(), testTarget(t, "https://example.com/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	cand := res.Candidates[0]
	if !strings.Contains(cand.Note, "__NEXT_DATA__") {
		t.Errorf("note = %q, want the payload source named", cand.Note)
	}

	sig := classify.New(nil).Classify(cand.Body, cand.ContentType, models.Baseline{})
	if !sig.Verdict {
		t.Errorf("recovered hydration body did not classify positively: %+v", sig)
	}
}

func TestInterceptChannel_RefetchesFragmentCandidates(t *testing.T) {
	full := fullArticleHTML(1200)
	var fetched []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = append(fetched, r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, full)
	}))
	defer srv.Close()

	captures := []models.NetCapture{
		{URL: srv.URL + "/fragments/story-body", Method: "GET", Status: 200, ContentType: "text/html", SHA256: strings.Repeat("a", 64)},
		{URL: srv.URL + "/analytics/beacon.gif", Method: "GET", Status: 200, ContentType: "image/gif", SHA256: strings.Repeat("b", 64)},
		{URL: srv.URL + "/fragments/broken", Method: "GET", Status: 404, ContentType: "text/html", SHA256: strings.Repeat("c", 64)},
	}

	ch := NewIntercept(testClient(t), captures)
	res := ch.Probe(context.Background(), testTarget(t, "https://example.com/story"))

	if res.Inconclusive {
		t.Fatalf("channel inconclusive: %s", res.Reason)
	}
	if len(fetched) != 1 || fetched[0] != "/fragments/story-body" {
		t.Fatalf("refetched %v, want only /fragments/story-body", fetched)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
}

// A full run against a page whose DOM holds the complete article:
// mutation phase must precede DOM reads, the teaser baseline must be
// captured, and the DOM channel must land a finding.
func TestOrchestrator_RunWithSession(t *testing.T) {
	teaser := "<html><body><article><p>" + articleText(150) + "</p></article></body></html>"
	sess := &fakeSession{
		html: teaser,
		selectors: map[string]string{
			"article": articleText(1400),
		},
	}

	o := newOrchestrator(t, Options{})
	target := testTarget(t, "https://example.com/story")
	report := o.Run(context.Background(), target, sess)

	if !report.Baseline.Known() {
		t.Fatal("teaser baseline was not captured")
	}
	if report.Baseline.Words < 140 || report.Baseline.Words > 160 {
		t.Errorf("baseline words = %d, want ~150", report.Baseline.Words)
	}

	// Mutation before read: overlay removal and state reset must come
	// before the first selector evaluation.
	firstEval := -1
	mutationDone := -1
	for i, call := range sess.calls {
		if call == "eval" && firstEval == -1 {
			firstEval = i
		}
		if call == "clear_state" {
			mutationDone = i
		}
	}
	if firstEval == -1 || mutationDone == -1 || mutationDone > firstEval {
		t.Errorf("mutation phase did not precede DOM reads: %v", sess.calls)
	}

	dom := outcomeFor(t, report, ChannelDOM)
	if dom.Status != models.ChannelSuccess || dom.Findings != 1 {
		t.Errorf("dom outcome = %+v, want success with 1 finding", dom)
	}
	if len(report.Findings) == 0 {
		t.Fatal("run produced no findings")
	}
	f := report.Findings[0]
	if f.Channel != ChannelDOM {
		t.Errorf("finding channel = %q", f.Channel)
	}
	if f.Severity != models.SeverityHigh {
		t.Errorf("dom finding severity = %v, want High", f.Severity)
	}
	if _, ok := report.Artifacts[f.Fingerprint]; !ok {
		t.Errorf("finding fingerprint %q missing from artifact map", f.Fingerprint)
	}
}

// Navigation failure sidelines the session channels as inconclusive but
// must not stop the HTTP-only channels, and the report stays well
// formed with the three outcome states kept distinct.
func TestOrchestrator_NavigationFailureIsolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	sess := &fakeSession{navErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	o := newOrchestrator(t, Options{})
	report := o.Run(context.Background(), testTarget(t, srv.URL+"/story"), sess)

	for _, name := range []string{ChannelDOM, ChannelHydration, ChannelIntercept} {
		out := outcomeFor(t, report, name)
		if out.Status != models.ChannelInconclusive {
			t.Errorf("%s status = %q, want inconclusive", name, out.Status)
		}
		if out.Reason == "" {
			t.Errorf("%s inconclusive outcome carries no reason", name)
		}
	}
	for _, name := range []string{ChannelJSONAPI, ChannelAltView, ChannelUAMatrix} {
		out := outcomeFor(t, report, name)
		if out.Status != models.ChannelNegative {
			t.Errorf("%s status = %q, want negative (it ran and found nothing)", name, out.Status)
		}
	}
	if len(report.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(report.Findings))
	}
	if report.RunID == "" || report.GeneratedAt.IsZero() {
		t.Error("report missing run identity or timestamp")
	}
}

type panicChannel struct{}

func (panicChannel) Name() string { return "panicker" }
func (panicChannel) Probe(context.Context, *models.Target) Result {
	panic("boom")
}

func TestOrchestrator_ChannelPanicIsInconclusive(t *testing.T) {
	o := newOrchestrator(t, Options{})
	target := testTarget(t, "https://example.com/story")

	outcome := o.runChannel(context.Background(), panicChannel{}, target, findings.New(o.store))

	if outcome.Status != models.ChannelInconclusive {
		t.Fatalf("status = %q, want inconclusive", outcome.Status)
	}
	if !strings.Contains(outcome.Reason, "boom") {
		t.Errorf("reason = %q, want the panic value captured", outcome.Reason)
	}
}
