// Package main is the entry point for the logrelay server binary. It
// dispatches two subcommands (serve and version) via a simple switch on
// os.Args so the binary's full CLI surface is readable in one place without
// requiring a cobra dependency.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logrelay/logrelay/internal/api"
	"github.com/logrelay/logrelay/internal/auditlog"
	"github.com/logrelay/logrelay/internal/config"
	"github.com/logrelay/logrelay/internal/logger"
	"github.com/logrelay/logrelay/internal/safego"
	"github.com/logrelay/logrelay/internal/shipper"
	"github.com/logrelay/logrelay/internal/telemetry"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(cfg)
	case "version":
		fmt.Printf("logrelay v%s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logging first so everything below, including the
	// shipper's console echo, uses the configured handler.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store := auditlog.NewStoreAt(
		filepath.Join(cfg.Audit.RootDir, filepath.FromSlash(cfg.Audit.FilePath)),
		cfg.Audit.MaxRecords,
	)
	if err := store.Ensure(); err != nil {
		return fmt.Errorf("failed to initialise audit trail: %w", err)
	}
	slog.Info("audit trail ready", "path", store.Path(), "max_records", cfg.Audit.MaxRecords)

	ship := shipper.New(shipper.Config{
		Enabled:     cfg.Shipper.Enabled,
		Endpoint:    cfg.Shipper.Endpoint,
		Environment: cfg.Shipper.Environment,
		FlushDelay:  cfg.Shipper.FlushDelay,
		Timeout:     cfg.Shipper.Timeout,
	}, nil)

	appLog := logger.New(
		logger.WithShipper(ship),
		logger.WithTraceProvider(logger.OTelTraceProvider{}),
		logger.WithAuditWrite(func(action, actorID, sourceIP string, metadata map[string]any) {
			rec := auditlog.NewRecord(actorID, "", action, sourceIP)
			rec.Details = metadata
			store.Append(rec)
		}),
	)
	appLog.Info("logrelay starting", logger.Fields{"version": version, "environment": cfg.Shipper.Environment})

	// Periodic age-based rotation of the audit trail.
	rotateDone := make(chan struct{})
	if cfg.Audit.RetentionDays > 0 {
		safego.Go(func() { rotateLoop(store, cfg.Audit.RetentionDays, rotateDone) })
	}

	// Prometheus metrics on a dedicated port so the scrape path is not
	// reachable through the admin API address.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	router := api.SetupRouter(store, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting admin API server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	close(rotateDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Final best-effort flush so the buffered log tail is not silently lost.
	ship.Close()

	slog.Info("server stopped gracefully")
	return nil
}

// rotateLoop prunes the audit trail daily until done is closed. The first
// rotation runs at startup so a long-stopped deployment catches up
// immediately.
func rotateLoop(store *auditlog.Store, retentionDays int, done <-chan struct{}) {
	if removed := store.PruneOlderThan(retentionDays); removed > 0 {
		slog.Info("rotated audit trail", "removed", removed, "retention_days", retentionDays)
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := store.PruneOlderThan(retentionDays); removed > 0 {
				slog.Info("rotated audit trail", "removed", removed, "retention_days", retentionDays)
			}
		case <-done:
			return
		}
	}
}
