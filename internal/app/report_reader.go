package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/useCases"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
)

// LatestReportReader serves the cached report and falls back to the JSON
// document written by the batch job.
type LatestReportReader struct {
	log    *slog.Logger
	source string
	cache  repository.ReportCache
	store  repository.ReportStore
}

var _ useCases.ReportReader = (*LatestReportReader)(nil)

func NewLatestReportReader(log *slog.Logger, source string, cache repository.ReportCache, store repository.ReportStore) *LatestReportReader {
	return &LatestReportReader{
		log:    log.With(slog.String("component", "app.LatestReportReader")),
		source: source,
		cache:  cache,
		store:  store,
	}
}

func (r *LatestReportReader) LatestReport(ctx context.Context) (*dto.ReportDTO, error) {
	if r.cache != nil {
		report, err := r.cache.GetReport(ctx, r.source)
		if err == nil {
			return report, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			r.log.Warn("cache read failed, falling back to file", sl.Err(err))
		}
	}

	return r.store.Load(ctx)
}
