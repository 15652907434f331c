// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net/http"
	"time"

	"github.com/woozymasta/gameroom/internal/config"
)

// limiterGC is how often idle rate-limit clients are dropped.
const limiterGC = 5 * time.Minute

// New creates a new Server instance around the lifecycle service and storage health check.
func New(rooms Rooms, health HealthChecker, cfg *config.Config) *Server {
	return &Server{
		rooms:      rooms,
		health:     health,
		limiter:    newIPLimiter(cfg.RateLimit.HardLimitCount, cfg.RateLimit.HardLimitWin),
		maxBody:    cfg.Server.MaxBodySize,
		trustProxy: cfg.Server.TrustProxy,
		expectedCT: cfg.Server.ContentType,
		shutdown:   make(chan struct{}),
	}
}

// StartWorkers starts the rate-limit cache cleanup routine.
func (s *Server) StartWorkers() {
	s.wg.Add(1)
	go s.gcRateLimitCache()
}

// StopWorkers stops the background routines and waits for them to exit.
func (s *Server) StopWorkers() {
	close(s.shutdown)
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /room", s.RateLimitMiddleware(http.HandlerFunc(s.handleCreate)))
	mux.Handle("GET /room", http.HandlerFunc(s.handleList))
	mux.Handle("GET /room/{id}", http.HandlerFunc(s.handleGet))
	mux.Handle("GET /room/{game}/{version}", http.HandlerFunc(s.handleListByGame))
	mux.Handle("DELETE /room/{id}", s.RateLimitMiddleware(http.HandlerFunc(s.handleShutdown)))
	mux.Handle("GET /status/{id}", http.HandlerFunc(s.handleStatus))

	mux.Handle("GET /healthz", http.HandlerFunc(s.handleHealth))
	mux.Handle("GET /version", http.HandlerFunc(s.handleVersion))

	return s.LoggingMiddleware(mux)
}

// gcRateLimitCache periodically drops rate-limit clients not seen recently.
func (s *Server) gcRateLimitCache() {
	defer s.wg.Done()

	ticker := time.NewTicker(limiterGC)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case now := <-ticker.C:
			s.limiter.gc(now, 2*limiterGC)
		}
	}
}
