package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/config"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/handlers/http"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Setup(logger.EnvProd).Error("failed to load config", sl.Err(err))
		os.Exit(1)
	}
	log := logger.Setup(cfg.Env)

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down...")
		cancel()
	}()

	log.Info("initializing report server...", slog.String("venue", cfg.Venue))
	a, err := app.NewServerApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if a.EventProcessor != nil {
		log.Info("starting report processor...")
		go func() {
			if err := a.EventProcessor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("report processor stopped", sl.Err(err))
			}
		}()
	}

	// avoid a typed nil inside the interface
	var history http.HistoryReader
	if a.Events != nil {
		history = a.Events
	}

	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := http.NewServer(log, httpAddr, cfg.Venue, a.Reader, a.Broadcaster, history)

	go func() {
		log.Info("HTTP server listening", slog.String("addr", httpAddr))
		if err := httpServer.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("HTTP server error", sl.Err(err))
			cancel()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Info("shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", sl.Err(err))
	}

	log.Info("cleaning up app resources...")
	a.Cleanup()

	log.Info("service stopped")
}
