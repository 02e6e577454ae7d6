package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/leakgate/classify"
	"github.com/use-agent/leakgate/config"
	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/history"
	"github.com/use-agent/leakgate/models"
	"github.com/use-agent/leakgate/probe"
	"github.com/use-agent/leakgate/report"
	"github.com/use-agent/leakgate/session"
	"github.com/use-agent/leakgate/store"
	"github.com/use-agent/leakgate/webhook"
)

// NewProbeCmd creates the probe command.
func NewProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Probe a single page for content exposure",
		Long: `Probe runs every exposure channel against one URL and prints a report.

Browser-backed channels (rendered DOM, hydration payloads, network
interception) need a local Chromium; without one the run degrades to
the HTTP-only channels and says so in the report.

Examples:
  # Probe a page and print a terminal report
  leakgate probe https://example.com/news/article

  # Machine-readable output
  leakgate probe --json https://example.com/news/article

  # Write a Markdown report next to the JSON artifacts
  leakgate probe --markdown -o report.md https://example.com/news/article

  # Skip the web-archive channel (no third-party requests)
  leakgate probe --no-archive https://example.com/news/article`,
		Args: cobra.ExactArgs(1),
		RunE: runProbeCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().StringP("user-agent", "u", "",
		"Override the browser user agent for the initial navigation")
	cmd.Flags().DurationP("timeout", "t", 0,
		"Run deadline (default from LEAKGATE_RUN_TIMEOUT, 3m)")
	cmd.Flags().Bool("no-browser", false,
		"Skip browser channels, run HTTP-only")
	cmd.Flags().Bool("no-archive", false,
		"Skip the web-archive channel")
	cmd.Flags().Bool("no-history", false,
		"Do not persist the run to the history database")

	return cmd
}

// runProbeCmd executes the probe command.
func runProbeCmd(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	mdOut, _ := cmd.Flags().GetBool("markdown")
	if jsonOut && mdOut {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}

	cfg := config.Load()
	setupLogger(cfg.Log, getVerboseFlag(cmd))

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	userAgent, _ := cmd.Flags().GetString("user-agent")
	target, err := models.NewTarget(args[0], userAgent, cfg.Probe.RequestTimeout)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}

	classifier := classify.New(classify.NewLexicon(
		cfg.Lexicon.PaywallTerms, cfg.Lexicon.SubscriptionTerms))
	client := fetch.New(cfg.Probe.RequestTimeout,
		cfg.Fetch.RequestsPerSecond, cfg.Fetch.Burst)

	var sess probe.Session
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); !noBrowser {
		driver, err := session.NewDriver(cfg.Browser)
		if err != nil {
			slog.Warn("browser unavailable, running HTTP-only", "error", err)
		} else {
			defer driver.Close()
			page, err := driver.Acquire()
			if err != nil {
				slog.Warn("page acquisition failed, running HTTP-only", "error", err)
			} else {
				sess = page
				defer page.Release()
			}
		}
	}

	noArchive, _ := cmd.Flags().GetBool("no-archive")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.Probe.RunTimeout
	}

	orch := probe.New(classifier, client, st, probe.Options{
		RunTimeout:      timeout,
		HTTPParallelism: cfg.Probe.HTTPParallelism,
		DisableArchive:  noArchive || cfg.Probe.DisableArchive,
		ArchiveBase:     cfg.Probe.ArchiveBase,
		UserAgents:      cfg.Probe.UserAgents,
		Referers:        cfg.Probe.Referers,
	})

	run := orch.Run(ctx, target, sess)

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory && cfg.History.Enabled {
		saveRunHistory(cfg.History.Path, run)
	}
	if cfg.Webhook.URL != "" {
		webhook.DeliverAsync(cfg.Webhook.URL, cfg.Webhook.Secret,
			webhook.NewRunCompleted(run))
	}

	out, closer, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closer()

	var w report.Writer
	switch {
	case jsonOut:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case mdOut:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewConsoleWriter(out)
	}
	if _, err := w.Write(run); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if len(run.Findings) > 0 {
		// Non-zero exit so scripted invocations can branch on exposure.
		return fmt.Errorf("%d exposure finding(s)", len(run.Findings))
	}
	return nil
}

// saveRunHistory persists the run, logging rather than failing: a
// broken history database must not discard a completed report.
func saveRunHistory(path string, run *models.RunReport) {
	db, err := history.Open(path)
	if err != nil {
		slog.Error("history database unavailable", "path", path, "error", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.SaveRun(ctx, run); err != nil {
		slog.Error("history persistence failed", "run_id", run.RunID, "error", err)
	}
}

// openOutput resolves the --output flag to a writer, defaulting to
// stdout. The returned closer is a no-op for stdout.
func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
