// Package probe implements the exposure channels and the orchestrator
// that runs them against one target. Each channel is one independent way
// gated content can leak: the rendered DOM, framework hydration blobs,
// guessable JSON endpoints, alternate page views, intercepted network
// responses, varied request identities, and third-party archive
// snapshots.
package probe

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/use-agent/leakgate/models"
)

// Canonical channel names. These are stable identifiers: finding IDs and
// severity defaults key on them, so repeated runs stay comparable.
const (
	ChannelDOM       = "dom"
	ChannelHydration = "hydration"
	ChannelJSONAPI   = "jsonapi"
	ChannelAltView   = "altview"
	ChannelIntercept = "intercept"
	ChannelUAMatrix  = "uamatrix"
	ChannelArchive   = "archive"
)

// Session is the rendered-page capability the browser-backed channels
// consume. session.Page satisfies it; tests substitute fakes.
type Session interface {
	// Navigate loads the target URL with the given user agent.
	Navigate(ctx context.Context, targetURL, userAgent string) error

	// HTML returns the current rendered markup.
	HTML() (string, error)

	// EvalText evaluates a JS expression and returns its string result,
	// or "" on any evaluation failure.
	EvalText(js string) string

	// RemoveOverlays strips paywall overlays, meters, and scroll locks
	// from the live page.
	RemoveOverlays()

	// ClearState resets cookies and web storage for the page.
	ClearState() error

	// DrainCaptures flushes in-flight network captures and returns
	// everything recorded since navigation.
	DrainCaptures() []models.NetCapture

	// Release returns the page to its pool.
	Release()
}

// Result is one channel's outcome: either it ran to completion with
// zero or more candidates, or it was inconclusive. An empty candidate
// list with Inconclusive=false is a genuine negative; the two are never
// collapsed.
type Result struct {
	Candidates   []models.RawCandidate
	Inconclusive bool
	Reason       string
}

// Success builds a conclusive result. An empty or nil candidate slice
// means the channel looked and found nothing.
func Success(candidates []models.RawCandidate) Result {
	return Result{Candidates: candidates}
}

// Inconclusive builds a failed-to-look result with a reason for the
// report.
func Inconclusive(format string, args ...any) Result {
	return Result{Inconclusive: true, Reason: fmt.Sprintf(format, args...)}
}

// Channel is one exposure vector. Probe never panics across this
// boundary and never mutates the target beyond its published contract;
// the orchestrator owns fault isolation and classification.
type Channel interface {
	Name() string
	Probe(ctx context.Context, target *models.Target) Result
}

// wrapRecovered rebuilds minimal article markup around plain text
// recovered from a JSON payload, so the classifier sees the same shape
// it would for a rendered page. Paragraph breaks in the source text are
// preserved.
func wrapRecovered(text string) []byte {
	var b strings.Builder
	b.WriteString("<article>")
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(para))
		b.WriteString("</p>")
	}
	b.WriteString("</article>")
	return []byte(b.String())
}
