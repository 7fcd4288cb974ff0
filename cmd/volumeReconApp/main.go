package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/TimPHC/Prediction-Market-Data-Check/config"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
)

func main() {
	os.Exit(run())
}

// run performs one reconciliation and returns the process exit code
func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// nothing has been fetched or written yet
		logger.Setup(logger.EnvProd).Error("failed to load config", sl.Err(err))
		return 1
	}
	log := logger.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("initializing app", slog.String("venue", cfg.Venue), slog.Int("lookback_days", cfg.LookbackDays))
	a, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		return 1
	}
	defer a.Cleanup()

	report, err := a.Runner.Run(ctx)
	if err != nil {
		log.Error("run failed, previous report left in place", sl.Err(err))
		return 1
	}

	if report.Partial {
		log.Warn("report written from partial data",
			slog.String("output", cfg.OutputPath),
			slog.String("fetch_error", report.Diagnostics.FetchError),
		)
	}
	log.Info("run finished",
		slog.String("run_id", report.RunID),
		slog.String("output", cfg.OutputPath),
		slog.Float64("volume_24h", report.Metrics.Volume24H),
		slog.Int("daily_records", len(report.DailyData)),
		slog.Int("weekly_records", len(report.WeeklyData)),
	)

	return 0
}
