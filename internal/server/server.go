// Package server exposes an inventory service over the JSON RPC wire so that
// routers on other grids can reach it.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/logging"
	"github.com/gridfed/hginventory/internal/rpc"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// maxRequestBytes bounds a decoded request body
const maxRequestBytes = 4 << 20

// Config configures the inventory server
type Config struct {
	Address      string
	PathPrefix   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Address:      ":8003",
		PathPrefix:   rpc.DefaultPathPrefix,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Server serves one inventory service
type Server struct {
	service    types.InventoryService
	config     Config
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server for svc
func New(svc types.InventoryService, config Config, logger *zap.Logger) *Server {
	if config.PathPrefix == "" {
		config.PathPrefix = rpc.DefaultPathPrefix
	}

	s := &Server{
		service: svc,
		config:  config,
		logger:  logging.OrNop(logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	s.router = r
	s.Mount(config.PathPrefix, svc)

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the HTTP handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting inventory server", zap.String("address", s.config.Address))
	if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down inventory server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// Mount serves the verbs of svc under prefix, next to the primary service.
// It must be called before Start.
func (s *Server) Mount(prefix string, svc types.InventoryService) {
	s.router.Route(prefix, func(r chi.Router) {
		r.Post("/{verb}", s.verbHandler(svc))
	})
}

func (s *Server) verbHandler(svc types.InventoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.handleVerb(w, r, svc)
	}
}

func (s *Server) handleVerb(w http.ResponseWriter, r *http.Request, svc types.InventoryService) {
	verb := rpc.Verb(chi.URLParam(r, "verb"))

	var req rpc.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest,
			errors.Wrap(errors.ErrCodeInvalidArgument, "malformed request body", err).
				WithOperation(string(verb)))
		return
	}

	resp, err := rpc.Dispatch(r.Context(), svc, verb, &req)
	if err != nil {
		status := http.StatusInternalServerError
		if stderrors.Is(err, errors.NewError(errors.ErrCodeUnknownVerb, "")) {
			status = http.StatusNotFound
		}
		s.respondError(w, status, err)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Inventory request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Error encoding JSON response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, err error) {
	s.logger.Warn("Inventory request rejected", zap.Int("status", statusCode), zap.Error(err))
	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":     err.Error(),
		"status":    statusCode,
		"timestamp": time.Now(),
	})
}
