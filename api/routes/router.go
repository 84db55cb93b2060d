package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oskarlind/groceryledger-backend/api/controllers"
	"github.com/oskarlind/groceryledger-backend/api/middleware"
	"github.com/oskarlind/groceryledger-backend/internal/analytics"
	"github.com/oskarlind/groceryledger-backend/internal/importer"
	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	"github.com/oskarlind/groceryledger-backend/internal/products"
	"github.com/oskarlind/groceryledger-backend/pkg/config"
	"github.com/oskarlind/groceryledger-backend/pkg/db"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	promRegistry *prometheus.Registry,
	importService importer.Service,
	receiptService ledger.Service,
	productService products.Service,
	analyticsService analytics.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/uploads", controllers.UploadReceipts(importService, cfg.Upload.MaxUploadMB, logg))
		r.Post("/uploads/json", controllers.UploadReceiptJSON(importService, cfg.Upload.MaxUploadMB, logg))

		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", controllers.ListReceipts(receiptService, logg))
			r.Post("/reimport-all", controllers.ReimportAllReceipts(importService, logg))
			r.Route("/{receiptId}", func(r chi.Router) {
				r.Get("/", controllers.GetReceipt(receiptService, logg))
				r.Get("/download", controllers.DownloadReceiptSource(receiptService, logg))
				r.Post("/reimport", controllers.ReimportReceipt(importService, logg))
				r.Delete("/", controllers.DeleteReceipt(receiptService, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(productService, logg))
			r.Post("/purge-empty", controllers.PurgeEmptyProducts(productService, logg))
			r.Route("/{productId}", func(r chi.Router) {
				r.Get("/", controllers.GetProduct(productService, analyticsService, logg))
				r.Get("/price-series", controllers.ProductPriceSeries(analyticsService, logg))
				r.Delete("/", controllers.DeleteProduct(productService, logg))
				r.Post("/merge/{targetId}", controllers.MergeProducts(productService, logg))
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/monthly-spending", controllers.MonthlySpending(analyticsService, logg))
		})
	})

	return r
}
