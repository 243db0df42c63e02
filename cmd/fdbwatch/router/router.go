// Package router configures the HTTP API of fdbwatch serve.
//
// Routes:
//   - GET /healthz: 200 while the monitor loop is healthy
//   - GET /status/current?model=<name>: latest check report as JSON
//   - GET /metrics: Prometheus metrics
//
// Reports older than the stale threshold carry an X-Fdbwatch-Stale header.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/fdbwatch/pkg/httpx"
	"github.com/HatiCode/fdbwatch/pkg/storage"
)

var modelNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]{0,251}[a-zA-Z0-9])?$`)

// Options configures SetupRoutes.
type Options struct {
	Store      storage.Store
	StaleAfter time.Duration
	// Gatherer backs /metrics; prometheus.DefaultGatherer if nil.
	Gatherer prometheus.Gatherer
	// Health is consulted by /healthz; always healthy if nil.
	Health func() error
	Logger *slog.Logger
}

// SetupRoutes returns the fdbwatch HTTP handler.
func SetupRoutes(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpx.HealthHandler(opts.Health))
	mux.HandleFunc("GET /status/current", handleGetReport(opts.Store, opts.StaleAfter, logger))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return httpx.Chain(mux, httpx.RecoveryMiddleware(logger), httpx.LoggingMiddleware(logger))
}

func handleGetReport(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := r.URL.Query().Get("model")
		if model == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "model parameter required")
			return
		}
		if !modelNameRegex.MatchString(model) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid model name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		report, found, err := store.GetLatest(ctx, model)
		if err != nil {
			logger.Error("failed to get report", "model", model, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("report not found for model %q", model))
			return
		}

		if staleAfter > 0 && time.Since(report.CheckedAt) > staleAfter {
			w.Header().Set("X-Fdbwatch-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, report); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
