package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/monitor"
	"go.uber.org/zap"
)

var (
	devChatID string
	dryRun    bool
	checkCmd  = &cobra.Command{
		Use:   "check",
		Short: "Run one weather check",
		Long: `Subscribe chats that messaged the bot, fetch forecasts, evaluate alert rules and
send the alerts, or the daily report when nothing fired, to every recipient.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
)

func init() {
	checkCmd.Flags().StringVar(&devChatID, "dev-chat-id", "", "send only to this chat id")
	checkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log messages instead of sending them")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	log.Info("Starting weather check",
		zap.Int("locations", len(cfg.Locations)),
		zap.String("provider", cfg.Weather.Provider),
		zap.Bool("dry_run", dryRun))

	a, err := newApp(ctx, cfg, log.Logger, tele)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer a.close(ctx)

	a.runner.SetPendingProcessor(a.bot)

	res, err := a.runner.Run(ctx, monitor.RunOptions{DevChatID: devChatID, DryRun: dryRun})
	if err != nil {
		log.Error("Weather check failed", zap.String("run_id", res.RunID.String()), zap.Error(err))
		return err
	}

	log.Info("Weather check complete",
		zap.String("run_id", res.RunID.String()),
		zap.Int("alerts", res.Alerts),
		zap.Int("recipients", res.Recipients),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed))
	return nil
}
