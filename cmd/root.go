package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/pkg/logger"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.uber.org/zap"
)

var (
	log  *logger.Logger
	tele *telemetry.Telemetry

	configPath string
	logLevel   string
	verbose    bool
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather-alert-bot",
		Short: "Weather alerts over Telegram",
		Long: `Fetches forecasts for the configured locations, evaluates alert rules against
daily summaries and delivers alerts, or a daily report, to Telegram chats.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeServices(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdownServices()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(checkCmd)
	cmd.AddCommand(serverCmd)
	cmd.AddCommand(subscribersCmd)

	return cmd
}

func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			if log != nil {
				log.Info("Received shutdown signal", zap.String("signal", sig.String()))
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return rootCmd().ExecuteContext(ctx)
}

func initializeServices(ctx context.Context) error {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	// 2. Set config
	// Having config in atomic allows changing it during runtime
	config.SetConfig(cfg)

	// 3. Initialize logger
	log, err = logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 4. Tracing is optional; a failed exporter must not stop the bot
	tele, err = telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		log.Warn("Failed to initialize telemetry", zap.Error(err))
		tele = &telemetry.Telemetry{}
	}

	log.Debug("Configuration loaded",
		zap.String("config_path", configPath),
		zap.Int("locations", len(cfg.Locations)),
		zap.String("provider", cfg.Weather.Provider))

	return nil
}

func shutdownServices() {
	if tele != nil {
		if err := tele.Shutdown(context.Background()); err != nil && log != nil {
			log.Warn("Failed to shut down telemetry", zap.Error(err))
		}
	}
	if log != nil {
		_ = log.Sync()
	}
}
