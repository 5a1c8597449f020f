package infra

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// providerHeadroom is added to the Gemini timeout so a response can still be
// written after the slowest allowed provider call.
const providerHeadroom = 10 * time.Second

// HTTPServer wraps http.Server with context driven shutdown.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates the API server. The write timeout is never shorter
// than the Gemini timeout plus headroom.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	write := cfg.HTTPWriteTimeout
	if cfg.GeminiTimeout > 0 && write < cfg.GeminiTimeout+providerHeadroom {
		write = cfg.GeminiTimeout + providerHeadroom
	}
	return &HTTPServer{server: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Run listens on Addr and serves until ctx is cancelled, then drains
// in-flight requests for at most grace. Request contexts are not derived from
// ctx, so a try-on in progress finishes during the drain.
func (s *HTTPServer) Run(ctx context.Context, grace time.Duration) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln, grace)
}

func (s *HTTPServer) serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
