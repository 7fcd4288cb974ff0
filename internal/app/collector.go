package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/venue"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
)

// ErrPageLimit marks a collection stopped by the page bound before the
// source reported its last page.
var ErrPageLimit = errors.New("page limit reached before end of data")

// CollectStats summarizes one pass over a record source.
type CollectStats struct {
	Pages   int
	Records int
	Retries int
	// Partial is set when collection stopped before the source was exhausted
	Partial bool
	LastErr error
}

type collectOptions struct {
	Since      time.Time
	PageLimit  int
	MaxPages   int
	MaxRetries int
	Backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// collectFills pages through src sequentially. A page that still fails after
// MaxRetries retries ends the collection; everything fetched so far is kept.
func collectFills(ctx context.Context, log *slog.Logger, src repository.RecordSource, opts collectOptions) ([]model.RawFillRecord, CollectStats) {
	var (
		records []model.RawFillRecord
		stats   CollectStats
		req     = model.PageRequest{Since: opts.Since, Limit: opts.PageLimit}
	)
	sleep := opts.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for stats.Pages < opts.MaxPages {
		page, retries, err := fetchPage(ctx, src, req, opts, sleep)
		stats.Retries += retries
		if err != nil {
			log.Warn("stopping collection after failed page",
				slog.Int("page", stats.Pages+1),
				slog.Int("retries", retries),
				sl.Err(err),
			)
			stats.Partial = true
			stats.LastErr = err
			break
		}
		stats.Pages++

		for _, rec := range page.Records {
			// zero timestamps are kept so they are counted as unclassifiable
			if !rec.Timestamp.IsZero() && rec.Timestamp.Before(opts.Since) {
				continue
			}
			records = append(records, rec)
		}

		log.Debug("page fetched",
			slog.Int("page", stats.Pages),
			slog.Int("records", len(page.Records)),
			slog.Bool("done", page.Done),
		)

		if page.Done {
			break
		}
		if page.NextCursor == "" || (page.NextCursor == req.Cursor && len(page.Records) == 0) {
			// no way forward
			break
		}
		req.Cursor = page.NextCursor

		if stats.Pages == opts.MaxPages {
			stats.Partial = true
			stats.LastErr = ErrPageLimit
			log.Warn("page limit reached", slog.Int("max_pages", opts.MaxPages))
		}
	}

	stats.Records = len(records)
	return records, stats
}

func fetchPage(
	ctx context.Context,
	src repository.RecordSource,
	req model.PageRequest,
	opts collectOptions,
	sleep func(context.Context, time.Duration) error,
) (*model.FillPage, int, error) {
	var (
		retries int
		lastErr error
	)
	for attempt := 0; ; attempt++ {
		page, err := src.NextPage(ctx, req)
		if err == nil {
			return page, retries, nil
		}
		lastErr = err

		if ctx.Err() != nil || !venue.IsRetryable(err) || attempt >= opts.MaxRetries {
			return nil, retries, lastErr
		}

		// exponential backoff: base, 2*base, 4*base...
		if err := sleep(ctx, opts.Backoff<<attempt); err != nil {
			return nil, retries, lastErr
		}
		retries++
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
