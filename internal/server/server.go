// Package server собирает HTTP-сервер документов: маршруты, middleware,
// хранилище и хаб подписок.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/worksync/internal/config"
	"github.com/iudanet/worksync/internal/server/handlers"
	"github.com/iudanet/worksync/internal/server/jwt"
	"github.com/iudanet/worksync/internal/server/middleware"
	"github.com/iudanet/worksync/internal/server/storage"
)

// HealthPath не логируется и не требует токена
const HealthPath = "/api/v1/health"

// Store - хранилище документов, которое можно проверить health check-ом
type Store interface {
	storage.DocumentStorage
	handlers.Pinger
}

// Server - HTTP сервер документов
type Server struct {
	logger  *slog.Logger
	httpSrv *http.Server
	hub     *handlers.Hub
	limiter *middleware.RateLimiter
	cfg     config.ServerConfig
}

// New creates a server. tokens может быть nil, если cfg.RequireAuth выключен.
func New(cfg config.ServerConfig, store Store, tokens *jwt.Service, logger *slog.Logger, version string) (*Server, error) {
	if cfg.RequireAuth && tokens == nil {
		return nil, errors.New("token service is required when auth is enabled")
	}

	s := &Server{
		logger: logger,
		hub:    handlers.NewHub(cfg.SubscriberBuffer),
		cfg:    cfg,
	}
	if cfg.WriteRateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.WriteRateLimit, cfg.RateWindow)
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(store, tokens, version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler (для httptest)
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) routes(store Store, tokens *jwt.Service, version string) http.Handler {
	documents := handlers.NewDocumentHandler(s.logger, store, s.hub)
	health := handlers.NewHealthHandler(s.logger, store, version)

	protect := func(h http.HandlerFunc) http.Handler {
		if !s.cfg.RequireAuth {
			return h
		}
		return middleware.AuthMiddleware(s.logger, tokens)(h)
	}

	limitWrites := func(h http.Handler) http.Handler {
		if s.limiter == nil {
			return h
		}
		return middleware.RateLimitMiddleware(s.limiter, middleware.ByWorkspace, s.logger)(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HealthPath, health.Health)
	mux.Handle("GET /api/v1/documents/{key}", protect(documents.Get))
	mux.Handle("PUT /api/v1/documents/{key}", limitWrites(protect(documents.Put)))
	mux.Handle("GET /api/v1/documents/{key}/subscribe", protect(documents.Subscribe))

	var handler http.Handler = mux
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	handler = middleware.LoggingMiddleware(s.logger, HealthPath)(handler)
	return handler
}

// Run слушает cfg.Addr до отмены ctx, затем корректно останавливается
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает ln до отмены ctx
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", ln.Addr().String(), "auth", s.cfg.RequireAuth)
		errC <- s.httpSrv.Serve(ln)
	}()

	select {
	case err := <-errC:
		s.release()
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")

	// Подписки - hijacked соединения, Shutdown их не ждет; закрываем хаб сами
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.httpSrv.Shutdown(shutdownCtx)
	s.release()
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) release() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
