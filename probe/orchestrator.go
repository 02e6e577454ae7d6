package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/leakgate/classify"
	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/findings"
	"github.com/use-agent/leakgate/models"
	"github.com/use-agent/leakgate/store"
)

const (
	defaultRunTimeout      = 3 * time.Minute
	defaultHTTPParallelism = 3
)

// Options tune one orchestrator. The zero value gives defaults.
type Options struct {
	// RunTimeout is the top-level deadline for one run.
	RunTimeout time.Duration

	// HTTPParallelism bounds the worker pool for the HTTP-only channels.
	// The session channels never parallelize: they share browser state.
	HTTPParallelism int

	// DisableArchive skips the archive channel, for targets that must
	// not be submitted to a third party.
	DisableArchive bool

	// ArchiveBase overrides the snapshot service root.
	ArchiveBase string

	// UserAgents and Referers override the identity-matrix lists.
	UserAgents []string
	Referers   []string
}

// Orchestrator runs every configured channel against one target and
// assembles the run report. Channels are isolated: one channel's
// timeout, I/O failure, or panic is recorded as inconclusive and never
// disturbs the others.
type Orchestrator struct {
	classifier *classify.Classifier
	client     *fetch.Client
	store      *store.Store
	opts       Options
}

// New creates an Orchestrator. classifier, client, and store are
// required; opts fields fall back to defaults when zero.
func New(classifier *classify.Classifier, client *fetch.Client, st *store.Store, opts Options) *Orchestrator {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	if opts.HTTPParallelism <= 0 {
		opts.HTTPParallelism = defaultHTTPParallelism
	}
	return &Orchestrator{
		classifier: classifier,
		client:     client,
		store:      st,
		opts:       opts,
	}
}

// Run probes one target through every channel and returns the report.
// A nil session skips the browser-backed channels (recorded as
// inconclusive, never conflated with a negative); the HTTP-only
// channels run regardless. Run always returns a well-formed report,
// findings or not.
func (o *Orchestrator) Run(ctx context.Context, target *models.Target, sess Session) *models.RunReport {
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, o.opts.RunTimeout)
	defer cancel()

	log := slog.With("run_id", runID, "target", target.URL)
	log.Info("probe run started")

	agg := findings.New(o.store)
	var outcomes []models.ChannelOutcome

	// ── 1. Browser session phase ────────────────────────────────────
	// Navigate, capture the teaser baseline off the unmodified page,
	// then run the mutation phase (overlay removal, storage reset)
	// before any channel reads the DOM. A navigation failure sidelines
	// the session channels only.
	sessionFailure := ""
	switch {
	case sess == nil:
		sessionFailure = "no browser session"
	default:
		if err := sess.Navigate(ctx, target.URL, target.UserAgent); err != nil {
			sessionFailure = "navigation failed: " + err.Error()
			log.Warn("navigation failed, session channels skipped", "error", err)
		}
	}

	if sessionFailure == "" {
		if raw, err := sess.HTML(); err == nil {
			plain := classify.PlainText([]byte(raw))
			target.SetBaseline(models.Baseline{
				Words: len(strings.Fields(plain)),
				Bytes: len(raw),
			})
		}

		sess.RemoveOverlays()
		if err := sess.ClearState(); err != nil {
			log.Debug("session state reset failed", "error", err)
		}

		outcomes = append(outcomes, o.runChannel(ctx, NewDOM(sess), target, agg))
		outcomes = append(outcomes, o.runChannel(ctx, NewHydration(sess), target, agg))

		// Response bodies may still be arriving after navigation
		// completes; DrainCaptures blocks until the recorder has
		// flushed before interception is treated as complete.
		captures := sess.DrainCaptures()
		outcomes = append(outcomes, o.runChannel(ctx, NewIntercept(o.client, captures), target, agg))
	} else {
		for _, name := range []string{ChannelDOM, ChannelHydration, ChannelIntercept} {
			outcomes = append(outcomes, models.ChannelOutcome{
				Channel: name,
				Status:  models.ChannelInconclusive,
				Reason:  sessionFailure,
			})
		}
	}

	// ── 2. HTTP-only phase ──────────────────────────────────────────
	// These channels share no session state, so they run on a bounded
	// worker pool. Each writes only its own outcome slot; the store and
	// aggregator serialize internally.
	httpChannels := []Channel{
		NewJSONAPI(o.client),
		NewAltView(o.client),
		NewUAMatrix(o.client, o.classifier, o.opts.UserAgents, o.opts.Referers),
	}
	if !o.opts.DisableArchive {
		httpChannels = append(httpChannels, NewArchive(o.client, o.opts.ArchiveBase))
	}

	httpOutcomes := make([]models.ChannelOutcome, len(httpChannels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.HTTPParallelism)
	for i, ch := range httpChannels {
		g.Go(func() error {
			httpOutcomes[i] = o.runChannel(gctx, ch, target, agg)
			return nil
		})
	}
	_ = g.Wait()
	outcomes = append(outcomes, httpOutcomes...)

	// ── 3. Report assembly ──────────────────────────────────────────
	report := &models.RunReport{
		RunID:       runID,
		TargetURL:   target.URL,
		GeneratedAt: time.Now().UTC(),
		Baseline:    target.Baseline(),
		Findings:    agg.Findings(),
		Channels:    outcomes,
		Artifacts:   o.store.Paths(),
		TimedOut:    errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
	log.Info("probe run finished",
		"findings", len(report.Findings),
		"channels", len(report.Channels),
		"timed_out", report.TimedOut,
	)
	return report
}

// runChannel executes one channel with full fault isolation: panics and
// inconclusive results are recorded, never propagated. Candidates from
// a conclusive result flow through the classifier; positive verdicts
// become findings.
func (o *Orchestrator) runChannel(ctx context.Context, ch Channel, target *models.Target, agg *findings.Aggregator) (outcome models.ChannelOutcome) {
	start := time.Now()
	outcome = models.ChannelOutcome{Channel: ch.Name()}
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = models.ChannelInconclusive
			outcome.Reason = fmt.Sprintf("channel panicked: %v", r)
			slog.Error("probe channel panicked", "channel", ch.Name(), "panic", r)
		}
		outcome.Elapsed = time.Since(start)
	}()

	res := ch.Probe(ctx, target)
	outcome.Candidates = len(res.Candidates)
	if res.Inconclusive {
		outcome.Status = models.ChannelInconclusive
		outcome.Reason = res.Reason
		slog.Debug("probe channel inconclusive",
			"channel", ch.Name(), "reason", res.Reason)
		return outcome
	}

	baseline := target.Baseline()
	for _, cand := range res.Candidates {
		sig := o.classifier.Classify(cand.Body, cand.ContentType, baseline)
		if !sig.Verdict {
			continue
		}
		agg.Record(cand, sig, classify.PlainText(cand.Body))
		outcome.Findings++
	}
	if outcome.Findings > 0 {
		outcome.Status = models.ChannelSuccess
	} else {
		outcome.Status = models.ChannelNegative
	}
	return outcome
}
