package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusServer exposes the default Prometheus registry over HTTP at
// the configured address and path.
type PrometheusServer struct {
	srv  *http.Server
	addr string
	path string
}

// NewPrometheusServer constructs a Server that will listen on addr and
// serve metrics at path once Start is called.
func NewPrometheusServer(addr, path string) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &PrometheusServer{
		srv:  &http.Server{Addr: addr, Handler: mux},
		addr: addr,
		path: path,
	}
}

// Start begins serving metrics. It blocks until the context is canceled or
// ListenAndServe returns a non-shutdown error.
func (s *PrometheusServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return context.Canceled
		}
		return err
	}
}

// Shutdown gracefully stops the metrics server.
func (s *PrometheusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
