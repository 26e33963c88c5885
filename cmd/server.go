package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/monitor"
	"github.com/vzahanych/weather-alert-bot/internal/scheduler"
	"github.com/vzahanych/weather-alert-bot/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the bot, the scheduler and the HTTP API",
	Long: `Long-poll Telegram for commands, run scheduled checks at the configured times
and serve health, metrics and alert preview endpoints until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	log.Info("Starting weather alert bot server",
		zap.String("config_path", configPath),
		zap.Bool("telemetry_enabled", cfg.Telemetry.Enabled),
		zap.Bool("schedule_enabled", cfg.Schedule.Enabled),
		zap.Int("server_port", cfg.Server.Port))

	a, err := newApp(ctx, cfg, log.Logger, tele)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer a.close(ctx)

	if err := a.aggregator.Start(ctx); err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		loc, err := scheduleLocation(cfg)
		if err != nil {
			return err
		}
		sched, err = scheduler.New(cfg.Schedule.Times, loc, cfg.Schedule.RunOnStart, scheduledCheck(a), a.clock, log.Logger)
		if err != nil {
			return err
		}
	}

	srv := server.NewServer(cfg.Server, a.runner, a.registry, a.metrics, a.clock, log.Logger, tele)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		return a.bot.Run(gctx)
	})
	if sched != nil {
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Server error", zap.Error(err))
		return err
	}

	log.Info("Server shutdown complete")
	return nil
}

func scheduledCheck(a *app) scheduler.Job {
	return func(ctx context.Context) error {
		res, err := a.runner.Run(ctx, monitor.RunOptions{})
		if err != nil {
			return err
		}
		log.Info("Scheduled run finished",
			zap.String("run_id", res.RunID.String()),
			zap.Int("alerts", res.Alerts),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed))
		return nil
	}
}
