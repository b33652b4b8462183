package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tabular-anonymizer/internal/config"
	"tabular-anonymizer/internal/engine"
	"tabular-anonymizer/internal/models"
	"tabular-anonymizer/internal/monitoring"
)

// Server provides a REST API over the anonymization engine
type Server struct {
	engine  *engine.Engine
	metrics *monitoring.MetricsRegistry
	config  config.APIConfig
	router  chi.Router
	srv     *http.Server
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AnonymizeRequest is one dataset submitted for anonymization, row-major
// like the CSV files the batch mode reads.
type AnonymizeRequest struct {
	Name    string     `json:"name,omitempty"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// NewServer creates a new API server
func NewServer(eng *engine.Engine, metrics *monitoring.MetricsRegistry, cfg config.APIConfig) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 32 << 20
	}

	server := &Server{
		engine:  eng,
		metrics: metrics,
		config:  cfg,
		router:  chi.NewRouter(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(s.bodyLimitMiddleware)

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	if s.config.APIKey != "" {
		s.router.Use(s.authMiddleware)
	}

	// Routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Health and status
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		// Anonymization
		r.Post("/anonymize", s.handleAnonymize)
		r.Post("/validate", s.handleValidate)

		// Control endpoints
		r.Delete("/control/clear", s.handleClear)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handleUpdateConfig)
	})
}

// Handler returns the configured HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	log.Printf("Starting API server on %s", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler methods

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status": "healthy",
			"system": s.metrics.GetSystemMetrics(),
		},
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"engine":      s.engine.GetStatistics(),
		"application": s.metrics.Snapshot(),
	}

	response := APIResponse{
		Success:   true,
		Data:      stats,
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}

	result, err := s.engine.Process(ds, nil)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.recordResult(result)

	response := APIResponse{
		Success:   true,
		Data:      result,
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleValidate runs the transform and validation stages without the risk
// and judgment stages, for callers that only want the per-column verdicts.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.decodeDataset(w, r)
	if !ok {
		return
	}

	run, err := s.engine.Anonymize(ds, nil)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	report := s.engine.Validate(ds, run.Anonymized, run.Log)

	response := APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"run_id": run.RunID,
			"report": report,
		},
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Clear(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.Reset()

	response := APIResponse{
		Success:   true,
		Data:      map[string]string{"status": "cleared"},
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.GetConfig()

	// The salt never leaves the process.
	safe := map[string]interface{}{
		"level":             cfg.Level,
		"diagnosis_allowed": cfg.DiagnosisAllowed,
		"token_length":      cfg.TokenLength,
	}

	response := APIResponse{
		Success:   true,
		Data:      safe,
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	current := s.engine.GetConfig()

	var update struct {
		Level            *string `json:"level"`
		DiagnosisAllowed *bool   `json:"diagnosis_allowed"`
		TokenLength      *int    `json:"token_length"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// The salt cannot be changed over the wire.
	next := current
	if update.Level != nil {
		next.Level = *update.Level
	}
	if update.DiagnosisAllowed != nil {
		next.DiagnosisAllowed = *update.DiagnosisAllowed
	}
	if update.TokenLength != nil {
		next.TokenLength = *update.TokenLength
	}

	if err := s.engine.UpdateConfig(next); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := APIResponse{
		Success:   true,
		Data:      map[string]string{"status": "config_updated"},
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// Middleware

func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.config.APIKey)) != 1 {
			log.Printf("Authentication failed from %s", r.RemoteAddr)
			s.writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		next.ServeHTTP(w, r)
	})
}

// Utility methods

func (s *Server) decodeDataset(w http.ResponseWriter, r *http.Request) (*models.Dataset, bool) {
	var req AnonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}

	if len(req.Headers) == 0 {
		s.writeError(w, http.StatusBadRequest, "headers are required")
		return nil, false
	}

	ds := models.NewDataset()
	for i, name := range req.Headers {
		values := make([]string, len(req.Rows))
		for j, row := range req.Rows {
			if i < len(row) {
				values[j] = row[i]
			}
		}
		ds.AddColumn(name, values)
	}
	return ds, true
}

func (s *Server) recordResult(result *engine.Result) {
	run := result.Run
	s.metrics.Counter(monitoring.MetricDatasetsProcessed).Inc()
	s.metrics.Counter(monitoring.MetricColumnsProcessed).Add(int64(run.Anonymized.NumColumns()))
	s.metrics.Counter(monitoring.MetricTransformFailures).Add(int64(len(run.TransformErrors)))
	s.metrics.Counter(monitoring.MetricValidationFails).Add(int64(len(result.Report.Fail)))
	s.metrics.Counter(monitoring.MetricValidationWarns).Add(int64(len(result.Report.Warn)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIResponse{
		Success:   false,
		Error:     msg,
		Timestamp: time.Now(),
	})
}
