package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dexalert/internal/config"
	"dexalert/internal/logging"
)

var (
	configPath string
	logLevel   string
	logPretty  bool
)

var rootCmd = &cobra.Command{
	Use:   "dexalert",
	Short: "DEX token alert engine",
	Long: `dexalert watches DEX tokens on behalf of Telegram users, evaluates
indicator presets and price alerts on a schedule, and delivers alerts to
Telegram and the configured mirror channels.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scan scheduler",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle over every user and exit",
	RunE:  runScan,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Send the daily summary to every user and exit",
	RunE:  runSummary,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "Human readable console logs")

	rootCmd.AddCommand(serveCmd, scanCmd, summaryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the service graph
func setup(ctx context.Context) (*app, error) {
	if configPath != "" {
		os.Setenv("CONFIG_FILE", configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty || logPretty)

	return newApp(ctx, cfg)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.SchedulerEnabled {
		if err := a.scheduler.Start(); err != nil {
			return err
		}
	} else {
		log.Info().Str("component", "main").Msg("scheduler disabled, scans run via /api/scan and /api/cron")
	}

	srv := a.httpServer()
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "main").Str("port", a.cfg.Port).Str("env", a.cfg.Environment).Msg("starting server")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Str("component", "main").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Str("component", "main").Msg("http shutdown")
	}
	return a.scheduler.Stop(shutdownCtx)
}

func runScan(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.orchestrator.ScanAll(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sent, err := a.orchestrator.DailySummary(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{"ok": true, "sent": sent})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
