// Package router configures HTTP routes for the analyzer's HTTP API.
//
// After a run completes, the analyzer serves the stored report so dashboards
// and follow-up tooling can fetch it without re-running the pipeline.
//
// Routes configured:
//   - GET /report/latest - Retrieve the most recently stored report
//   - GET /report?run=<id> - Retrieve the report for a specific run
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riiali/green-microbench/pkg/httpx"
	"github.com/riiali/green-microbench/pkg/storage"
)

var runIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SetupRoutes configures HTTP endpoints for the analyzer.
func SetupRoutes(store storage.Store, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Health includes backend reachability when the store supports it.
	var check func(context.Context) error
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		check = p.Ping
	}
	mux.Handle("/healthz", httpx.HealthHandler(check))

	mux.HandleFunc("/report", handleGetReport(store, logger))
	mux.HandleFunc("/report/latest", handleGetLatest(store, logger))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetReport returns a handler for GET /report?run=<id>.
func handleGetReport(store storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Query().Get("run")
		if runID == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "run parameter required")
			return
		}
		if !runIDRegex.MatchString(runID) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid run ID format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		rep, found, err := store.Get(ctx, runID)
		if err != nil {
			logger.Error("failed to get report", "run", runID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("report not found for run %q", runID))
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, rep); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleGetLatest returns a handler for GET /report/latest.
func handleGetLatest(store storage.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		rep, found, err := store.Latest(ctx)
		if err != nil {
			logger.Error("failed to get latest report", "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, "no report stored yet")
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, rep); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
