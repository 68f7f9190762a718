package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"PivotScreener/internal/model"
	"PivotScreener/internal/recorder"
)

// ReportSource exposes the scanner's held results.
type ReportSource interface {
	Latest() *model.ScanResult
	LastRun() *model.ScanResult
}

// Triggerer starts a background scan, reporting false if one is already running.
type Triggerer interface {
	Trigger() bool
}

// HistoryStore is the optional scan history backend.
type HistoryStore interface {
	RecentRuns(limit int) ([]recorder.RunSummary, error)
	TickerHistory(ticker string, limit int) ([]recorder.TickerMatch, error)
}

// Server serves the latest scan report and scan controls over HTTP.
type Server struct {
	reports ReportSource
	trigger Triggerer
	history HistoryStore
	metrics http.Handler
}

// NewServer wires the handlers. history and metrics may be nil.
func NewServer(reports ReportSource, trigger Triggerer, history HistoryStore, metrics http.Handler) *Server {
	return &Server{reports: reports, trigger: trigger, history: history, metrics: metrics}
}

var strategyPaths = map[string]model.StrategyTag{
	"doji":   model.TagDojiSetup,
	"inside": model.TagInsideCamarilla,
}

// Router builds the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/report", s.handleReport)
		r.Get("/report/{strategy}", s.handleStrategyReport)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Post("/scan", s.handleScan)
		r.Get("/runs", s.handleRuns)
		r.Get("/history/{ticker}", s.handleTickerHistory)
	})
	return r
}

func (s *Server) latestReport(w http.ResponseWriter) (*model.ScanReport, bool) {
	res := s.reports.Latest()
	if res == nil || res.Report == nil {
		writeError(w, http.StatusNotFound, "no scan has completed yet")
		return nil, false
	}
	return res.Report, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if rep, ok := s.latestReport(w); ok {
		writeJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) handleStrategyReport(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "strategy"))
	tag, known := strategyPaths[name]
	if !known {
		writeError(w, http.StatusNotFound, "unknown strategy "+name)
		return
	}
	rep, ok := s.latestReport(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":        rep.RunID,
		"last_updated":  rep.LastUpdated,
		"total_scanned": rep.TotalScanned,
		"strategy":      tag,
		"stocks":        rep.Filter(tag),
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	res := s.reports.LastRun()
	if res == nil {
		writeError(w, http.StatusNotFound, "no scan has run yet")
		return
	}
	d := res.Diagnostics
	body := map[string]any{
		"status":      res.Status,
		"provenance":  d.Provenance,
		"universe":    d.Universe,
		"outcomes":    d.Outcomes,
		"duration_ms": d.Duration.Milliseconds(),
		"summary":     d.String(),
	}
	if res.Report != nil {
		body["run_id"] = res.Report.RunID
		body["last_updated"] = res.Report.LastUpdated
	}
	if d.Error != "" {
		body["error"] = d.Error
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "scanning is disabled")
		return
	}
	if !s.trigger.Trigger() {
		writeError(w, http.StatusConflict, "scan already in progress")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "scan history is not enabled")
		return
	}
	runs, err := s.history.RecentRuns(limitParam(r, 20))
	if err != nil {
		log.Error().Err(err).Msg("load recent runs")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if runs == nil {
		runs = []recorder.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleTickerHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "scan history is not enabled")
		return
	}
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	matches, err := s.history.TickerHistory(ticker, limitParam(r, 50))
	if err != nil {
		log.Error().Err(err).Str("symbol", ticker).Msg("load ticker history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if matches == nil {
		matches = []recorder.TickerMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticker": ticker, "matches": matches})
}

func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 500)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// cors lets a static dashboard on another origin read the API.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
