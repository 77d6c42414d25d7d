// Command analyzer attributes smart-plug power measurements across the
// services of a microservice benchmark run and reports per-service energy.
//
// The analyzer reads three recorded sources:
//  1. The plug-meter capture (NDJSON, total power in watts)
//  2. The software power estimator export (per-service watt estimates)
//  3. The container resource monitor export (per-service CPU usage)
//
// It aligns them onto one timeline, splits each measured total across
// services proportionally to their weights, integrates power into energy,
// ranks the services, and stores the resulting report. The report is then
// served over HTTP:
//   - GET /report/latest - Most recently stored report
//   - GET /report?run=<id> - Report for a specific run
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	analyzer \
//	  -run-id=checkout-load-1 \
//	  -meter-path=captures/power.ndjson \
//	  -estimator-path=captures/estimates.json \
//	  -resource-path=captures/cpu.json
//
// Environment variables mirror the flags: RUN_ID, METER_PATH,
// ESTIMATOR_PATH, RESOURCE_PATH, RESOLUTION, PRECEDENCE, WATTS_PER_CORE,
// MAX_GAP, WORKERS, MAX_REJECTED, STORAGE, REDIS_ADDR, LISTEN, LOG_LEVEL,
// LOG_FORMAT. A YAML manifest given via -manifest overrides both.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riiali/green-microbench/cmd/analyzer/config"
	"github.com/riiali/green-microbench/cmd/analyzer/logger"
	"github.com/riiali/green-microbench/cmd/analyzer/metrics"
	"github.com/riiali/green-microbench/cmd/analyzer/router"
	"github.com/riiali/green-microbench/cmd/analyzer/store"
	"github.com/riiali/green-microbench/pkg/httpx"
	"github.com/riiali/green-microbench/pkg/report"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	if err := config.ApplyManifest(cfg); err != nil {
		log.Error("failed to load manifest", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("starting green-microbench analyzer",
		"version", version,
		"run", cfg.RunID,
		"precedence", cfg.Precedence,
	)

	client, err := httpx.NewClient(cfg.TLS, cfg.FetchTimeout)
	if err != nil {
		log.Error("failed to build HTTP client", "error", err)
		os.Exit(1)
	}

	st, err := store.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	if closer, ok := st.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	a := New(cfg, client, st, log, metrics.New(cfg.RunID))

	runCtx, cancelRun := context.WithTimeout(context.Background(), cfg.RunTimeout)
	rep, err := a.Run(runCtx)
	cancelRun()
	if err != nil {
		log.Error("analysis run failed", "error", err)
		os.Exit(1)
	}

	if cfg.OutputFile != "" {
		if err := writeReportFile(rep, cfg.OutputFile); err != nil {
			log.Error("failed to write report file", "error", err)
			os.Exit(1)
		}
	}
	if !cfg.Serve {
		return
	}

	handler := httpx.Middleware(log)(router.SetupRoutes(st, log))
	httpServer, err := httpx.NewServer(cfg.Listen, handler, cfg.TLS, log)
	if err != nil {
		log.Error("failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// writeReportFile writes the encoded report to path, or stdout for "-".
func writeReportFile(rep *report.Report, path string) error {
	data, err := rep.Encode()
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
