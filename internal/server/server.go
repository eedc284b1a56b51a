package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/internal/metrics"
	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/monitor"
	"github.com/ogulcanaydogan/fare-guardian/pkg/storage"
)

// AlertReader is the read side of the alert store.
type AlertReader interface {
	GetAlert(ctx context.Context, id string) (*model.PriceAlert, error)
	ListAlerts(ctx context.Context, filter storage.AlertFilter) ([]model.PriceAlert, error)
}

// ScanControl exposes the scheduler to operators.
type ScanControl interface {
	TriggerNow(ctx context.Context) (monitor.ScanSummary, error)
	LastScan() (monitor.ScanSummary, bool)
	Running() bool
}

// Server provides health, scan trigger, alert inspection and metrics endpoints.
type Server struct {
	alerts AlertReader
	scans  ScanControl
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates an API server.
func NewServer(alerts AlertReader, scans ScanControl, logger *slog.Logger) *Server {
	s := &Server{
		alerts: alerts,
		scans:  scans,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/scans", s.handleTriggerScan)
	s.mux.HandleFunc("GET /api/v1/alerts", s.handleListAlerts)
	s.mux.HandleFunc("GET /api/v1/alerts/{id}", s.handleGetAlert)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type healthResponse struct {
	Status      string               `json:"status"`
	ScanRunning bool                 `json:"scan_running"`
	LastScan    *monitor.ScanSummary `json:"last_scan,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", ScanRunning: s.scans.Running()}
	if last, ok := s.scans.LastScan(); ok {
		resp.LastScan = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scans.TriggerNow(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summary)
	case errors.Is(err, monitor.ErrScanInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, monitor.ErrStoreUnavailable):
		s.logger.Error("manual scan", "error", err)
		writeError(w, http.StatusServiceUnavailable, "alert store unavailable")
	default:
		s.logger.Error("manual scan", "error", err)
		writeError(w, http.StatusInternalServerError, "scan failed")
	}
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := storage.AlertFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Email:      r.URL.Query().Get("email"),
	}

	alerts, err := s.alerts.ListAlerts(ctx, filter)
	if err != nil {
		s.logger.Error("list alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if alerts == nil {
		alerts = []model.PriceAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	alert, err := s.alerts.GetAlert(ctx, r.PathValue("id"))
	if errors.Is(err, storage.ErrAlertNotFound) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		s.logger.Error("get alert", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
