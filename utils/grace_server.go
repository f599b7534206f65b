package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT     = 60 * time.Second
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second
)

// Server is an http.Server that drains on SIGINT or SIGTERM. Shutdown hooks run
// before the drain starts so long-lived feed streams can end first.
type Server struct {
	*http.Server

	shutdownTimeout time.Duration
	onShutdown      []func()
}

// NewServer creates a Server. The write timeout stays zero since feed streams
// are open-ended responses.
func NewServer(addr string, handler http.Handler, onShutdown ...func()) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       DEFAULT_READ_TIMEOUT,
		},
		shutdownTimeout: DEFAULT_SHUTDOWN_TIMEOUT,
		onShutdown:      onShutdown,
	}
}

// Run listens on the server address and serves until ctx ends or a stop signal
// arrives.
func (srv *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net.Listen error: %w", err)
	}
	return srv.serve(ctx, ln)
}

func (srv *Server) serve(ctx context.Context, ln net.Listener) error {
	served := make(chan error, 1)
	go func() {
		served <- srv.Server.Serve(ln)
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	Sugar.Info("graceful shutting down HTTP server")
	for _, fn := range srv.onShutdown {
		fn()
	}
	sctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
		return err
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	Sugar.Info("HTTP server shutdown success")
	return nil
}

// GraceServer serves handler on addr until the process is asked to stop.
// onShutdown hooks run before in-flight requests are drained.
func GraceServer(addr string, handler http.Handler, onShutdown ...func()) error {
	return NewServer(addr, handler, onShutdown...).Run(context.Background())
}
