// Package main is the entrypoint for notifd, the notification daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/notifd/internal/config"
	"github.com/jmylchreest/notifd/internal/daemon"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var globalOpts struct {
	verbose    bool
	configPath string
}

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:     "notifd",
	Short:   "Desktop notification daemon",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	Long: `notifd implements the freedesktop.org desktop notifications
interface: it receives notifications over D-Bus, sanitizes and rate-limits
them, keeps a bounded in-memory history, and serves a private applet
socket for a status-area client.

notifd takes no positional arguments and is configured entirely through
its config file and environment.`,
	RunE: runServe,
}

func main() {
	setupLogger()
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"path to config file (default: ~/.config/notifd/notifd.toml)")

	if err := rootCmd.Execute(); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	if globalOpts.verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogger()
	var cfg *config.DaemonConfig
	var err error
	if globalOpts.configPath != "" {
		cfg, err = config.LoadDaemonConfigFrom(globalOpts.configPath)
	} else {
		cfg, err = config.LoadDaemonConfig()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg, globalOpts.configPath, logger)
	logger.Info("notifd starting", "version", version)
	if err := d.Run(ctx); err != nil {
		return err
	}
	logger.Info("notifd stopped cleanly")
	return nil
}
