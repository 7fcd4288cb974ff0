package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/useCases"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/queue"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
)

// Processor is a long-running background loop
type Processor interface {
	Run(ctx context.Context) error
}

// ReportProcessor consumes published reports, refreshes the cache and
// pushes each new report to websocket clients.
type ReportProcessor struct {
	log         *slog.Logger
	consumer    queue.ReportConsumer
	cache       repository.ReportCache
	broadcaster useCases.Broadcaster
	seen        map[string]time.Time
	seenTTL     time.Duration
}

var _ Processor = (*ReportProcessor)(nil)

func NewReportProcessor(log *slog.Logger, consumer queue.ReportConsumer, cache repository.ReportCache, broadcaster useCases.Broadcaster) *ReportProcessor {
	return &ReportProcessor{
		log:         log.With(slog.String("component", "app.ReportProcessor")),
		consumer:    consumer,
		cache:       cache,
		broadcaster: broadcaster,
		seen:        make(map[string]time.Time),
		seenTTL:     24 * time.Hour,
	}
}

func (p *ReportProcessor) Run(ctx context.Context) error {
	reportCh, err := p.consumer.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case report, ok := <-reportCh:
			if !ok {
				return ctx.Err()
			}
			if report == nil {
				continue
			}

			p.handle(ctx, report)

			if err := p.consumer.Commit(ctx, report); err != nil && ctx.Err() == nil {
				p.log.Warn("failed to commit report", slog.String("run_id", report.RunID), sl.Err(err))
			}
		}
	}
}

func (p *ReportProcessor) handle(ctx context.Context, report *dto.ReportDTO) {
	now := time.Now()
	p.expireSeen(now)

	// redelivered after a rebalance
	if _, exists := p.seen[report.RunID]; exists {
		return
	}
	p.seen[report.RunID] = now

	log := p.log.With(slog.String("run_id", report.RunID), slog.String("source", report.Source))

	if p.cache != nil {
		if err := p.cache.SaveReport(ctx, report); err != nil {
			log.Warn("failed to cache report", sl.Err(err))
		}
	}

	if ctx.Err() != nil {
		return
	}

	p.broadcaster.BroadcastReport(report)
	log.Info("report broadcast", slog.Bool("partial", report.Partial))
}

func (p *ReportProcessor) expireSeen(now time.Time) {
	for id, at := range p.seen {
		if now.Sub(at) > p.seenTTL {
			delete(p.seen, id)
		}
	}
}
