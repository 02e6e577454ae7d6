package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/leakgate/api"
	"github.com/use-agent/leakgate/api/handler"
	"github.com/use-agent/leakgate/cache"
	"github.com/use-agent/leakgate/classify"
	"github.com/use-agent/leakgate/config"
	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/history"
	"github.com/use-agent/leakgate/session"
	"github.com/use-agent/leakgate/store"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the probe HTTP API server",
		Long: `Serve starts the HTTP API. Configuration comes from LEAKGATE_*
environment variables (LEAKGATE_HOST, LEAKGATE_PORT, LEAKGATE_API_KEYS,
LEAKGATE_RUN_TIMEOUT and friends).

The server keeps a pool of browser pages for the rendered-DOM
channels. If no Chromium is available it still starts and serves
HTTP-only probe runs.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	setupLogger(cfg.Log, getVerboseFlag(cmd))

	startTime := time.Now()
	slog.Info("leakgate starting",
		"version", getVersion(),
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// ── 1. Artifact store ───────────────────────────────────────────
	st, err := store.New(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}

	// ── 2. Classifier and HTTP client ───────────────────────────────
	classifier := classify.New(classify.NewLexicon(
		cfg.Lexicon.PaywallTerms, cfg.Lexicon.SubscriptionTerms))
	client := fetch.New(cfg.Probe.RequestTimeout,
		cfg.Fetch.RequestsPerSecond, cfg.Fetch.Burst)

	// ── 3. Browser pool (optional) ──────────────────────────────────
	driver, err := session.NewDriver(cfg.Browser)
	if err != nil {
		slog.Warn("browser unavailable, serving HTTP-only probes", "error", err)
		driver = nil
	} else {
		defer driver.Close()
	}

	// ── 4. History database (optional) ──────────────────────────────
	var db *history.DB
	if cfg.History.Enabled {
		db, err = history.Open(cfg.History.Path)
		if err != nil {
			slog.Warn("history database unavailable", "path", cfg.History.Path, "error", err)
			db = nil
		} else {
			defer db.Close()
		}
	}

	// ── 5. Router ───────────────────────────────────────────────────
	deps := &handler.Deps{
		Cfg:        cfg,
		Driver:     driver,
		Classifier: classifier,
		Client:     client,
		Store:      st,
		History:    db,
		Cache:      cache.New(cfg.Cache.MaxEntries),
	}
	router := api.NewRouter(deps, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// ── 6. Serve ────────────────────────────────────────────────────
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// driver.Close() runs via defer — drains the page pool and kills Chrome.
	slog.Info("leakgate stopped")
	return nil
}
