package infra

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// HTTPServer runs the API listener.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer applies the configured timeouts. Errors net/http logs on its
// own, such as TLS handshake failures, go to logger at error level.
func NewHTTPServer(cfg *Config, handler http.Handler, logger Logger) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ErrorLog:          log.New(errorLogWriter{logger: logger.With().Str("component", "http").Logger()}, "", 0),
	}
	return &HTTPServer{server: srv}
}

type errorLogWriter struct {
	logger Logger
}

func (w errorLogWriter) Write(p []byte) (int, error) {
	w.logger.Error().Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Start blocks serving requests. It returns nil once Shutdown has been
// called.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx ends.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
