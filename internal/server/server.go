package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trade-app/internal/interfaces"
	"trade-app/internal/logger"
	"trade-app/internal/store"
)

// Server is the HTTP surface of the advisor.
type Server struct {
	srv *http.Server
}

func New(cfg *store.Config, advisor interfaces.Advisor) *Server {
	return &Server{srv: &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      NewHTTPHandler(NewHandler(advisor, cfg.Server.MaxUploadMB)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
