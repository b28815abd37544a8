// Package server assembles the chi router and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openmaplab/ogc-layer-gateway/internal/core/config"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/health"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/middleware"
	"github.com/openmaplab/ogc-layer-gateway/internal/core/router"
)

// Run sets up http and serves until ctx is cancelled. readyCheck gates
// /readyz; pass the cache store's ping, or nil when there is nothing to wait
// on.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handlers *router.Handlers, readyCheck func() error) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(readyCheck))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	handlers.Mount(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
