package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/nyc-pickups-dashboard/internal/dashboard"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/domain"
	"github.com/couchcryptid/nyc-pickups-dashboard/internal/views"
)

// PageBuilder runs the dashboard pipeline. Implemented by *dashboard.Service.
type PageBuilder interface {
	Build(ctx context.Context, p dashboard.Params) (dashboard.Page, error)
	Histogram(ctx context.Context) (domain.HourlyCounts, error)
	TripsAt(ctx context.Context, hour int) ([]domain.Trip, *domain.Point, error)
	RemoteRows(ctx context.Context) (domain.RemoteTable, error)
}

// Server serves the dashboard page, its JSON views, and the health, readiness
// and metrics endpoints.
type Server struct {
	httpServer  *http.Server
	pages       PageBuilder
	defaultHour int
	logger      *slog.Logger
}

// NewServer creates an HTTP server with the dashboard and operational routes.
// pages may be nil.
func NewServer(addr string, pages PageBuilder, ready sharedobs.ReadinessChecker, defaultHour int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			ReadTimeout: 10 * time.Second,
			// The first page run may wait on the full dataset download.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		pages:       pages,
		defaultHour: defaultHour,
		logger:      logger,
	}

	// Commands without a page pipeline (the exporter) only serve the
	// operational routes.
	if pages != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
		mux.HandleFunc("GET /api/histogram", s.handleHistogram)
		mux.HandleFunc("GET /api/trips", s.handleTrips)
		mux.HandleFunc("GET /api/remote-rows", s.handleRemoteRows)
	}
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer.Handler = withMiddleware(mux, logger)
	return s
}

func withMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(true),
	)
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
	)
	return recovery(cors(handlers.CompressHandler(next)))
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params, err := dashboard.ParseParams(r.URL.Query(), s.defaultHour)
	if err != nil {
		s.writeErrorPage(w, http.StatusBadRequest, err)
		return
	}

	page, err := s.pages.Build(r.Context(), params)
	if err != nil {
		s.logger.Error("page build failed", "hour", params.Hour, "error", err)
		s.writeErrorPage(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, &page); err != nil {
		s.logger.Error("page render failed", "error", err)
		s.writeErrorPage(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeErrorPage(w http.ResponseWriter, status int, cause error) {
	var buf bytes.Buffer
	if err := views.RenderError(&buf, views.NewErrorData(status, cause.Error())); err != nil {
		http.Error(w, cause.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type histogramResponse struct {
	Counts domain.HourlyCounts `json:"counts"`
	Total  int                 `json:"total"`
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	counts, err := s.pages.Histogram(r.Context())
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, histogramResponse{Counts: counts, Total: counts.Total()})
}

type tripsResponse struct {
	Hour     int           `json:"hour"`
	Count    int           `json:"count"`
	Centroid *domain.Point `json:"centroid,omitempty"`
	Trips    []domain.Trip `json:"trips"`
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	hour := s.defaultHour
	if v := r.URL.Query().Get("hour"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "hour must be an integer"})
			return
		}
		hour = h
	}

	trips, center, err := s.pages.TripsAt(r.Context(), hour)
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, tripsResponse{
		Hour:     hour,
		Count:    len(trips),
		Centroid: center,
		Trips:    trips,
	})
}

type remoteRowsResponse struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (s *Server) handleRemoteRows(w http.ResponseWriter, r *http.Request) {
	table, err := s.pages.RemoteRows(r.Context())
	if err != nil {
		s.writeAPIError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, remoteRowsResponse{Columns: table.Columns, Rows: table.Rows})
}

func (s *Server) writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrInvalidHour) {
		status = http.StatusBadRequest
	} else {
		s.logger.Error("api request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
