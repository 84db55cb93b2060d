package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/oskarlind/groceryledger-backend/api/routes"
	"github.com/oskarlind/groceryledger-backend/internal/analytics"
	"github.com/oskarlind/groceryledger-backend/internal/importer"
	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	"github.com/oskarlind/groceryledger-backend/internal/parsing"
	"github.com/oskarlind/groceryledger-backend/internal/products"
	"github.com/oskarlind/groceryledger-backend/internal/sourcefiles"
	"github.com/oskarlind/groceryledger-backend/pkg/config"
	"github.com/oskarlind/groceryledger-backend/pkg/db"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
	"github.com/oskarlind/groceryledger-backend/pkg/metrics"
	"github.com/oskarlind/groceryledger-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	importMetrics := metrics.NewImportMetrics(promRegistry)

	parserRegistry, err := buildParserRegistry(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to build parser registry", err)
		os.Exit(1)
	}
	dispatcher := parsing.NewDispatcher(parserRegistry, cfg.Parser.Workers, cfg.Parser.Timeout)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	sourceRepo := sourcefiles.NewRepository(dbClient.DB())

	sourceRegistry, err := sourcefiles.NewRegistry(sourceRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create source file registry", err)
		os.Exit(1)
	}

	importService, err := importer.NewService(ledgerRepo, sourceRegistry, dispatcher, dbClient, importMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create import service", err)
		os.Exit(1)
	}
	receiptService, err := ledger.NewService(ledgerRepo, sourceRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt service", err)
		os.Exit(1)
	}
	productService, err := products.NewService(ledgerRepo, dbClient, logg, cfg.Products.NoisePrefixes)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	analyticsService, err := analytics.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"formats": parserRegistry.Tags(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			promRegistry,
			importService,
			receiptService,
			productService,
			analyticsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildParserRegistry wires the built-in json parser plus one command parser
// per configured format tag.
func buildParserRegistry(cfg *config.Config) (*parsing.Registry, error) {
	registry := parsing.NewRegistry()
	if err := registry.Register(parsing.FormatJSONV1, parsing.NewJSONParser()); err != nil {
		return nil, err
	}
	for tag, command := range cfg.Parser.Commands {
		parser, err := parsing.NewCommandParser(command)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(tag, parser); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
