package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oskarlind/groceryledger-backend/internal/cron"
	"github.com/oskarlind/groceryledger-backend/internal/sourcefiles"
	"github.com/oskarlind/groceryledger-backend/pkg/config"
	"github.com/oskarlind/groceryledger-backend/pkg/db"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
	"github.com/oskarlind/groceryledger-backend/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cronMetrics := metrics.NewCronJobMetrics(promRegistry)

	metricsAddr := ":" + cfg.Worker.MetricsPort
	go func() {
		if err := http.ListenAndServe(metricsAddr, newMetricsMux(promRegistry)); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "metrics listener stopped unexpectedly", err)
		}
	}()

	sourceRegistry, err := sourcefiles.NewRegistry(sourcefiles.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create source file registry", err)
		os.Exit(1)
	}

	sweep, err := cron.NewOrphanSweepJob(
		sourceRegistry,
		cfg.Cron.OrphanSweepInterval,
		cfg.Cron.OrphanSweepGrace,
		cronMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create orphan sweep job", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"interval":     cfg.Cron.OrphanSweepInterval.String(),
		"metrics_addr": metricsAddr,
	})
	logg.Info(ctx, "starting worker")

	sweep.Run(ctx)

	logg.Info(ctx, "worker shutting down gracefully")
}

func newMetricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
