package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/useCases"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoData is returned when neither a fill page nor a market snapshot could
// be fetched. Nothing is persisted in that case.
var ErrNoData = errors.New("no data fetched")

// ErrMarketPageLimit marks a market snapshot whose listing was cut at the
// provider's page bound.
var ErrMarketPageLimit = errors.New("market listing cut at page limit")

// RunnerConfig carries the per-venue parameters of a run.
type RunnerConfig struct {
	SourceTag     model.SourceTag
	Contracts     model.ContractSet
	Asset         model.SettlementAsset
	LookbackDays  int
	WeeklyRecords int
	FeeRate       *decimal.Decimal

	PageLimit    int
	MaxPages     int
	MaxRetries   int
	RetryBackoff time.Duration
}

// VolumeRunner performs one full reconciliation over the lookback window
// and persists the resulting report.
type VolumeRunner struct {
	log       *slog.Logger
	cfg       RunnerConfig
	source    repository.RecordSource
	store     repository.ReportStore
	snapshots repository.MarketSnapshotProvider
	cache     repository.ReportCache
	events    repository.EventPersistence
	publisher repository.ReportPublisher

	now   func() time.Time
	runID func() string
	sleep func(context.Context, time.Duration) error
}

var _ useCases.ReportService = (*VolumeRunner)(nil)

type RunnerOption func(*VolumeRunner)

func WithSnapshotProvider(p repository.MarketSnapshotProvider) RunnerOption {
	return func(r *VolumeRunner) { r.snapshots = p }
}

func WithReportCache(c repository.ReportCache) RunnerOption {
	return func(r *VolumeRunner) { r.cache = c }
}

func WithEventPersistence(p repository.EventPersistence) RunnerOption {
	return func(r *VolumeRunner) { r.events = p }
}

func WithPublisher(p repository.ReportPublisher) RunnerOption {
	return func(r *VolumeRunner) { r.publisher = p }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) RunnerOption {
	return func(r *VolumeRunner) { r.now = now }
}

// WithSleep replaces the retry backoff wait, for tests
func WithSleep(sleep func(context.Context, time.Duration) error) RunnerOption {
	return func(r *VolumeRunner) { r.sleep = sleep }
}

func NewVolumeRunner(
	log *slog.Logger,
	cfg RunnerConfig,
	source repository.RecordSource,
	store repository.ReportStore,
	opts ...RunnerOption,
) *VolumeRunner {
	r := &VolumeRunner{
		log:    log.With(slog.String("component", "app.VolumeRunner"), slog.String("source", source.Name())),
		cfg:    cfg,
		source: source,
		store:  store,
		now:    time.Now,
		runID:  uuid.NewString,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *VolumeRunner) Run(ctx context.Context) (*dto.ReportDTO, error) {
	now := r.now().UTC()
	runID := r.runID()
	since := now.Add(-time.Duration(r.cfg.LookbackDays) * 24 * time.Hour)
	log := r.log.With(slog.String("run_id", runID))

	log.Info("collecting fills", slog.Time("since", since))
	records, stats := collectFills(ctx, log, r.source, collectOptions{
		Since:      since,
		PageLimit:  r.cfg.PageLimit,
		MaxPages:   r.cfg.MaxPages,
		MaxRetries: r.cfg.MaxRetries,
		Backoff:    r.cfg.RetryBackoff,
		sleep:      r.sleep,
	})
	log.Info("fills collected",
		slog.Int("pages", stats.Pages),
		slog.Int("records", stats.Records),
		slog.Int("retries", stats.Retries),
		slog.Bool("partial", stats.Partial),
	)

	var (
		snapshot *model.MarketSnapshot
		snapErr  error
	)
	if r.snapshots != nil {
		snapshot, snapErr = r.snapshots.Snapshot(ctx)
		if snapErr != nil {
			log.Warn("market snapshot unavailable", sl.Err(snapErr))
			snapshot = nil
		}
	}
	snapPartial := snapshot != nil && snapshot.Partial
	if snapshot != nil {
		if snapshot.SkippedMarkets > 0 {
			log.Warn("malformed markets left out of snapshot", slog.Int("skipped", snapshot.SkippedMarkets))
		}
		if snapPartial {
			log.Warn("market snapshot truncated", slog.Int("markets", snapshot.MarketCount))
		}
	}

	if stats.Pages == 0 && snapshot == nil {
		cause := errors.Join(stats.LastErr, snapErr)
		log.Error("nothing fetched, keeping previous report", sl.Err(cause))
		return nil, fmt.Errorf("%w: %v", ErrNoData, cause)
	}

	events := service.ClassifyAll(records, r.cfg.Contracts)
	rec := service.Reconcile(events, r.cfg.Asset)
	daily := service.BucketDaily(rec.VolumeByDay())
	weekly := service.BucketWeekly(daily)

	metrics := service.DeriveMetrics(daily, weekly, snapshot, r.cfg.FeeRate, now)
	if r.cfg.SourceTag == model.SourceSynthetic {
		metrics.SourceOfTruth = model.SourceSynthetic
	}

	fetchErr := stats.LastErr
	if fetchErr == nil {
		fetchErr = snapErr
	}
	if fetchErr == nil && snapPartial {
		fetchErr = ErrMarketPageLimit
	}
	report := dto.NewReport(dto.ReportInput{
		RunID:          runID,
		Source:         r.source.Name(),
		SourceTag:      r.cfg.SourceTag,
		Now:            now,
		Partial:        stats.Partial || snapErr != nil || snapPartial,
		Metrics:        metrics,
		Daily:          service.LatestDaily(daily, r.cfg.LookbackDays),
		Weekly:         service.LatestWeekly(weekly, r.cfg.WeeklyRecords),
		Reconciliation: rec,
		Fetch:          dto.FetchStats{Pages: stats.Pages, Retries: stats.Retries, Err: fetchErr},
	})

	if ratio, ok := rec.DoubleCountRatio(); ok {
		log.Info("reconciled",
			slog.String("taker_only", rec.Totals.TakerOnly.String()),
			slog.String("naive_sum_all", rec.Totals.NaiveSumAll.String()),
			slog.String("double_count_ratio", ratio.StringFixed(4)),
			slog.Int("unclassifiable", rec.Totals.UnclassifiableEvents),
		)
	}

	if err := r.store.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	log.Info("report saved", slog.Bool("partial", report.Partial), slog.Int("days", len(report.DailyData)))

	r.fanOut(ctx, log, report, events, rec)

	return report, nil
}

// fanOut feeds the optional sinks. Their failures never fail the run.
func (r *VolumeRunner) fanOut(ctx context.Context, log *slog.Logger, report *dto.ReportDTO, events []model.ClassifiedEvent, rec *service.Reconciliation) {
	if r.cache != nil {
		if err := r.cache.SaveReport(ctx, report); err != nil {
			log.Warn("failed to cache report", sl.Err(err))
		}
	}

	if r.events != nil {
		if err := r.events.SaveFills(ctx, report.RunID, report.Source, events); err != nil {
			log.Warn("failed to persist fills", sl.Err(err))
		}
		if err := r.events.SaveDailyVolumes(ctx, report.RunID, report.Source, rec.Days); err != nil {
			log.Warn("failed to persist daily volumes", sl.Err(err))
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishReport(ctx, report); err != nil {
			log.Warn("failed to publish report", sl.Err(err))
		}
	}
}
