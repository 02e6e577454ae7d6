package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/leakgate/config"
)

// NewRootCmd creates the root command for leakgate.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leakgate",
		Short: "Paywall content-exposure prober",
		Long: `Leakgate checks whether a paywalled article leaks its full text
through side channels: hydration payloads, JSON endpoints, alternate
views, intercepted fragment responses, crawler user agents, and web
archives. Each channel is probed independently and every confirmed
exposure is recorded with a content-addressed evidence artifact.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewProbeCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger configures the default slog logger. The verbose flag
// lowers the level to debug regardless of LEAKGATE_LOG_LEVEL.
func setupLogger(cfg config.LogConfig, verbose bool) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}
