// Package repository defines all the repository interfaces used by domain services
// Following the dependency inversion principle, domain logic depends on these interfaces,
// and infrastructure implementations provide concrete implementations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
)

// ErrNotFound is returned when a store or cache holds no report yet
var ErrNotFound = errors.New("not found")

// RecordSource yields raw fills page by page
// Pagination is sequential: each request carries the cursor returned by the previous page
type RecordSource interface {
	// Name identifies the venue in logs and reports
	Name() string

	// NextPage fetches the page after req.Cursor
	// Implementations apply their own per-request timeout; retries are the caller's concern
	NextPage(ctx context.Context, req model.PageRequest) (*model.FillPage, error)
}

// MarketSnapshotProvider returns a point-in-time aggregate over the venue's markets
type MarketSnapshotProvider interface {
	Snapshot(ctx context.Context) (*model.MarketSnapshot, error)
}

// ReportStore persists the report document consumed by the dashboard renderer
// Save must never leave a partially written document in place of the previous one
type ReportStore interface {
	Save(ctx context.Context, report *dto.ReportDTO) error
	Load(ctx context.Context) (*dto.ReportDTO, error)
}

// ReportCache keeps the last-known-good report per venue for fast reads
type ReportCache interface {
	SaveReport(ctx context.Context, report *dto.ReportDTO) error
	GetReport(ctx context.Context, source string) (*dto.ReportDTO, error)
}

// EventPersistence defines the interface for persistent event storage
// This is used for storing classified fills and per-day reconciliation results
// for historical analysis and audit purposes
type EventPersistence interface {
	// SaveFills persists classified fill events for one run
	SaveFills(ctx context.Context, runID, source string, events []model.ClassifiedEvent) error

	// SaveDailyVolumes persists the parallel per-day totals for one run
	SaveDailyVolumes(ctx context.Context, runID, source string, days []service.DayVolume) error

	// GetDailyVolumesSince returns the most recent totals per day since the given time
	GetDailyVolumesSince(ctx context.Context, source string, since time.Time) ([]service.DayVolume, error)
}

// ReportPublisher announces finished reports to downstream consumers
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *dto.ReportDTO) error
	Close() error
}
