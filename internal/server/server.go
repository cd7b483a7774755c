package server

import (
	"context"
	"net"
	"net/http"
	"time"
)

const (
	_readHeaderTimeout = 5 * time.Second
	_shutdownTimeout   = 5 * time.Second
)

type Server struct {
	srv *http.Server
}

func NewHTTPServer(port string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort("", port),
			Handler:           handler,
			ReadHeaderTimeout: _readHeaderTimeout,
		},
	}
}

// Start blocks until the server stops. After Shutdown it returns http.ErrServerClosed.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown waits for in-flight requests. ctx may already be done, so the wait
// is bounded by its own timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
