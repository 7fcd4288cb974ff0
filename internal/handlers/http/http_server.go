package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/useCases"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/sl"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 366
)

// HistoryReader returns persisted per-day reconciliation totals
type HistoryReader interface {
	GetDailyVolumesSince(ctx context.Context, source string, since time.Time) ([]service.DayVolume, error)
}

// Server represents an HTTP server with all routes configured
type Server struct {
	log         *slog.Logger
	source      string
	reader      useCases.ReportReader
	broadcaster useCases.Broadcaster
	history     HistoryReader
	mux         *http.ServeMux
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes.
// history may be nil, in which case /history answers 503.
func NewServer(
	log *slog.Logger,
	addr, source string,
	reader useCases.ReportReader,
	broadcaster useCases.Broadcaster,
	history HistoryReader,
) *Server {
	mux := http.NewServeMux()

	server := &Server{
		log:         log.With(slog.String("component", "http.Server")),
		source:      source,
		reader:      reader,
		broadcaster: broadcaster,
		history:     history,
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.registerRoutes()

	return server
}

// Handler exposes the routes, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/report", s.handleReport)
	s.mux.HandleFunc("/history", s.handleHistory)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ws", s.broadcaster.Handler())
}

// handleReport serves the latest report document
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.reader.LatestReport(r.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "no report available yet")
			return
		}
		s.log.Error("failed to load report", sl.Err(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// handleHistory serves per-day reconciliation totals, ?days=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history storage not configured")
		return
	}

	days := defaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryDays {
			s.writeError(w, http.StatusBadRequest, "days must be between 1 and 366")
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	volumes, err := s.history.GetDailyVolumesSince(r.Context(), s.source, since)
	if err != nil {
		s.log.Error("failed to load history", sl.Err(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	s.writeJSON(w, http.StatusOK, dto.FromDayVolumes(volumes))
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to encode response", sl.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
