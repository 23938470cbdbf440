package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/larder-pos/larder/internal/catalog"
	"github.com/larder-pos/larder/internal/observability"
	"github.com/larder-pos/larder/internal/orders"
	"github.com/larder-pos/larder/internal/stock"
	"github.com/larder-pos/larder/internal/suppliers"
	"github.com/larder-pos/larder/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SuppliersHandler *suppliers.Handler
	StockHandler     *stock.Handler
	CatalogHandler   *catalog.Handler
	OrdersHandler    *orders.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Larder defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/products", params.CatalogHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
