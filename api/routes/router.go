package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lunastore/storefront/api/controllers"
	cartcontrollers "github.com/lunastore/storefront/api/controllers/cart"
	"github.com/lunastore/storefront/api/middleware"
	cartstore "github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/internal/checkout"
	"github.com/lunastore/storefront/internal/reconcile"
	"github.com/lunastore/storefront/pkg/config"
	"github.com/lunastore/storefront/pkg/logger"
	"github.com/lunastore/storefront/pkg/session"
)

// Deps carries everything the router mounts.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	Store        *cartstore.Store
	Orchestrator *reconcile.Orchestrator
	Pipeline     *reconcile.Pipeline
	Gate         *checkout.Gate
	Session      *session.Manager
	Registry     *prometheus.Registry
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
	)
	if d.Config != nil {
		r.Use(middleware.CORS(d.Config.App.AllowedOrigins()))
	}

	r.Get("/healthz", controllers.HealthLive(d.Config))
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartcontrollers.CartFetch(d.Store, d.Logger))
		r.Post("/clear", cartcontrollers.CartClear(d.Store, d.Logger))
		r.Route("/items", func(r chi.Router) {
			r.Post("/", cartcontrollers.CartAdd(d.Orchestrator, d.Store, d.Logger))
			r.Patch("/{id}", cartcontrollers.CartUpdateQuantity(d.Pipeline, d.Store, d.Logger))
			r.Delete("/{id}", cartcontrollers.CartRemove(d.Orchestrator, d.Store, d.Logger))
		})
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", controllers.CheckoutAttempt(d.Gate, d.Logger))
		r.Post("/dismiss", controllers.CheckoutDismissSignIn(d.Gate, d.Logger))
	})

	r.Route("/session", func(r chi.Router) {
		r.Post("/", controllers.SessionCreate(d.Session, d.Gate, d.Logger))
		r.Delete("/", controllers.SessionDestroy(d.Session, d.Gate, d.Logger))
	})

	return r
}
