package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	handler "github.com/TimPHC/Prediction-Market-Data-Check/internal/handlers/http"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/handlers/slogdiscard"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	report *dto.ReportDTO
	err    error
}

func (s stubReader) LatestReport(context.Context) (*dto.ReportDTO, error) {
	return s.report, s.err
}

type stubBroadcaster struct{}

func (stubBroadcaster) BroadcastReport(*dto.ReportDTO) {}

func (stubBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}
}

type stubHistory struct {
	source string
	since  time.Time
	days   []service.DayVolume
}

func (s *stubHistory) GetDailyVolumesSince(_ context.Context, source string, since time.Time) ([]service.DayVolume, error) {
	s.source, s.since = source, since
	return s.days, nil
}

func newServer(reader stubReader, history handler.HistoryReader) http.Handler {
	return handler.NewServer(slogdiscard.NewDiscardLogger(), ":0", "kalshi", reader, stubBroadcaster{}, history).Handler()
}

func TestHandleReport(t *testing.T) {
	h := newServer(stubReader{report: &dto.ReportDTO{RunID: "run-1", Source: "kalshi"}}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got dto.ReportDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-1", got.RunID)
}

func TestHandleReportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "not found", err: repository.ErrNotFound, code: http.StatusNotFound},
		{name: "wrapped not found", err: errors.Join(errors.New("load"), repository.ErrNotFound), code: http.StatusNotFound},
		{name: "broken store", err: errors.New("disk on fire"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newServer(stubReader{err: tt.err}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report", nil))
			require.Equal(t, tt.code, rec.Code)
			require.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestHandleHealthAndWebsocketRoute(t *testing.T) {
	h := newServer(stubReader{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	history := &stubHistory{days: []service.DayVolume{{
		Date:        time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		NaiveSumAll: decimal.NewFromInt(200),
		TakerOnly:   decimal.NewFromInt(100),
		TakerEvents: 1,
		MakerEvents: 1,
	}}}
	h := newServer(stubReader{}, history)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?days=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "kalshi", history.source)
	require.WithinDuration(t, time.Now().AddDate(0, 0, -7), history.since, time.Minute)

	var got []dto.DayVolumeDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "2025-01-20", got[0].Date)
	require.NotNil(t, got[0].DoubleCountRatio)
	require.Equal(t, 2.0, *got[0].DoubleCountRatio)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?days=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistoryNotConfigured(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(stubReader{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
