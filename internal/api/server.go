package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"spotmm/internal/config"
	"spotmm/pkg/types"
)

// Server runs the read-only HTTP/WebSocket status API for one pair.
type Server struct {
	cfg      config.DashboardConfig
	provider MarketSnapshotProvider
	fullCfg  config.Config
	bc       *Broadcaster
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a status API server bound to cfg.Port, broadcasting for
// provider's pair (read once via Status() — engine.Bot populates Pair at
// construction, before any tick has run).
func NewServer(cfg config.DashboardConfig, provider MarketSnapshotProvider, fullCfg config.Config, logger *slog.Logger) *Server {
	bc := NewBroadcaster(provider.Status().Pair.Symbol, logger)
	handlers := NewHandlers(provider, fullCfg, bc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		fullCfg:  fullCfg,
		bc:       bc,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("status server starting", "addr", s.server.Addr, "pair", s.bc.pair)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping status server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// PushSnapshot builds the current snapshot from the provider and fans it out
// to every connected dashboard client. Installed as the engine's
// snapshot-published callback so viewers get every tick, not just the one
// sent at connect time.
func (s *Server) PushSnapshot() {
	s.bc.BroadcastSnapshot(BuildSnapshot(s.provider, s.fullCfg))
}

// BroadcastFill pushes one deduplicated fill to every connected dashboard
// client. Installed as the engine's fill-log callback.
func (s *Server) BroadcastFill(f types.Fill) {
	s.bc.BroadcastEvent(NewFillEvent(f))
}
