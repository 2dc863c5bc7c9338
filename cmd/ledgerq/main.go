package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	clientcmd "github.com/ledgerq/ledgerq/internal/cmd/client"
	serverrun "github.com/ledgerq/ledgerq/internal/cmd/server"
	cfgpkg "github.com/ledgerq/ledgerq/internal/config"
	pebblestore "github.com/ledgerq/ledgerq/internal/storage/pebble"
	logpkg "github.com/ledgerq/ledgerq/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// initialize logger for CLI
	// Respect LEDGERQ_LOG_LEVEL for both CLI and server start output
	level := os.Getenv("LEDGERQ_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "ledgerq",
		Short: "ledgerq runtime CLI",
		Long:  "ledgerq is a single-binary obligation ledger. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start ledgerq server (HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			configPath, _ := cmd.Flags().GetString("config")
			fulfillWebhook, _ := cmd.Flags().GetString("fulfill-webhook")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg := cfgpkg.Default()
			if configPath != "" {
				loaded, err := cfgpkg.Load(configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			cfgpkg.FromEnv(&cfg)
			if logLevel != "" {
				_ = os.Setenv("LEDGERQ_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("LEDGERQ_LOG_FORMAT", logFormat)
			}
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:        dataDir,
				HTTPAddr:       httpAddr,
				Fsync:          mode,
				FsyncInterval:  time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:         cfg,
				FulfillWebhook: fulfillWebhook,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverStartCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	serverStartCmd.Flags().String("log-level", os.Getenv("LEDGERQ_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("LEDGERQ_LOG_FORMAT"), "Log format: text|json (default text)")
	serverStartCmd.Flags().String("config", os.Getenv("LEDGERQ_CONFIG"), "Config file path (JSON or YAML)")
	serverStartCmd.Flags().String("fulfill-webhook", os.Getenv("LEDGERQ_FULFILL_WEBHOOK"), "Default fulfillment webhook URL")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// ledger and obligation commands (migrated into internal/cmd/client)
	rootCmd.AddCommand(clientcmd.NewLedgerCommand(apiURL))
	rootCmd.AddCommand(clientcmd.NewObligationCommand(apiURL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("LEDGERQ_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
