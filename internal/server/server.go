// Package server exposes the daemon's HTTP API: session control, device
// probing, favorites management, history queries, Prometheus metrics, and a
// websocket event stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tbarrett/upswatch/internal/event"
	"github.com/tbarrett/upswatch/internal/favorites"
	"github.com/tbarrett/upswatch/internal/history"
	"github.com/tbarrett/upswatch/internal/session"
	"github.com/tbarrett/upswatch/internal/version"
)

// Server is the upswatch HTTP server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *zap.Logger

	session   *session.Session
	favorites *favorites.Store
	history   *history.Store
	bus       *event.Bus
	registry  *prometheus.Registry
}

// New creates a Server wired to the daemon's components. The history store
// and metrics registry may be nil; their routes are then not mounted.
func New(addr string, sess *session.Session, favs *favorites.Store, hist *history.Store, bus *event.Bus, reg *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:       mux,
		logger:    logger,
		session:   sess,
		favorites: favs,
		history:   hist,
		bus:       bus,
		registry:  reg,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/session", s.handleSessionState)
	s.mux.HandleFunc("POST /api/v1/session/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/v1/session/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("POST /api/v1/session/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/v1/session/variables", s.handleVariables)
	s.mux.HandleFunc("PUT /api/v1/session/variables/{name}", s.handleSetVariable)
	s.mux.HandleFunc("GET /api/v1/session/commands", s.handleCommands)
	s.mux.HandleFunc("POST /api/v1/session/commands/{name}", s.handleRunCommand)

	s.mux.HandleFunc("POST /api/v1/devices/probe", s.handleProbe)

	s.mux.HandleFunc("GET /api/v1/favorites", s.handleFavoritesList)
	s.mux.HandleFunc("GET /api/v1/favorites/{name}", s.handleFavoriteGet)
	s.mux.HandleFunc("PUT /api/v1/favorites/{name}", s.handleFavoritePut)
	s.mux.HandleFunc("DELETE /api/v1/favorites/{name}", s.handleFavoriteDelete)

	if s.history != nil {
		s.mux.HandleFunc("GET /api/v1/history/samples", s.handleHistorySamples)
		s.mux.HandleFunc("GET /api/v1/history/transitions", s.handleHistoryTransitions)
	}

	if s.bus != nil {
		s.mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	}

	if s.registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
}

// Handler returns the server's route multiplexer, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Upswatch-Version", version.Short())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "upswatch",
		"version": version.Map(),
	})
}
