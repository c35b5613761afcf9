package cli

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/observability"
	promhooks "github.com/matzehuels/jarprobe/pkg/observability/prometheus"
)

const metricsShutdownTimeout = 5 * time.Second

// metricsRouter serves the registry on /metrics and a liveness answer on
// /healthz.
func metricsRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// startMetrics installs the Prometheus hooks and serves them on addr. The
// returned function stops the server and restores the no-op hooks. An
// empty addr disables metrics.
func (c *CLI) startMetrics(ctx context.Context, addr string) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hooks, err := promhooks.New(reg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "register metrics")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "listen on %s", addr)
	}
	srv := &http.Server{
		Handler:           metricsRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.Logger.Error("metrics server stopped", "err", err)
		}
	}()
	hooks.Install()
	c.Logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		observability.Reset()
		sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}, nil
}
