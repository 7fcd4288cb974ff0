package useCases

import (
	"context"
	"net/http"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
)

// ReportService runs one full reconciliation over the lookback window.
type ReportService interface {
	Run(ctx context.Context) (*dto.ReportDTO, error)
}

// ReportReader returns the latest known-good report.
type ReportReader interface {
	LatestReport(ctx context.Context) (*dto.ReportDTO, error)
}

// Broadcaster defines an interface for pushing updates to WebSocket/API layers.
type Broadcaster interface {
	BroadcastReport(report *dto.ReportDTO)
	Handler() http.HandlerFunc
}
