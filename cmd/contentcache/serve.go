package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/contentcache/internal/logging"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/spf13/cobra"
)

func serveMetricsCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics and backend health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("listen") {
					listenAddr = a.cfg.Daemon.MetricsAddr
				}

				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.PrometheusHandler())
				mux.HandleFunc("/healthz", a.healthz)
				httpServer := &http.Server{
					Addr:              listenAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					logging.Op().Info("metrics server started", "addr", listenAddr)
					if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
				}()

				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

				select {
				case sig := <-sigCh:
					logging.Op().Info("shutdown signal received", "signal", sig.String())
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := httpServer.Shutdown(ctx); err != nil {
						return fmt.Errorf("shutdown metrics server: %w", err)
					}
					return nil
				case err := <-errCh:
					return fmt.Errorf("metrics server error: %w", err)
				}
			})
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":9464", "Metrics listen address")
	return cmd
}

// healthz reports 503 when the store, the cache, or the counter primary is
// unreachable.
func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]error{
		"postgres":      a.store.Ping(ctx),
		"redis_cache":   a.cache.Ping(ctx).Err(),
		"redis_primary": a.persistent.Ping(ctx),
	}
	status := http.StatusOK
	for name, err := range checks {
		if err != nil {
			status = http.StatusServiceUnavailable
			logging.Op().Warn("health check failed", "backend", name, "error", err)
		}
	}
	w.WriteHeader(status)
	fmt.Fprintln(w, http.StatusText(status))
}
