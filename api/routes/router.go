package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cartstore/api/controllers"
	cartcontrollers "github.com/angelmondragon/cartstore/api/controllers/cart"
	"github.com/angelmondragon/cartstore/api/middleware"
	"github.com/angelmondragon/cartstore/pkg/config"
	"github.com/angelmondragon/cartstore/pkg/logger"
)

// Sessions is what the router needs from the session provider.
type Sessions interface {
	middleware.StoreOpener
	controllers.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	sessions Sessions,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, sessions, logg))
	})

	if cfg.Metrics.Enabled && gatherer != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.CartSession(sessions, logg))
		r.Get("/", cartcontrollers.CartView(logg))
		r.Delete("/", cartcontrollers.CartClear(logg))
		r.Post("/items", cartcontrollers.CartAddItem(logg))
		r.Patch("/items/{itemId}", cartcontrollers.CartUpdateQuantity(logg))
		r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(logg))
	})

	return r
}
