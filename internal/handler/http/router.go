package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopcore/storefront-api/internal/auth"
)

// RouterDeps bundles everything the HTTP surface composes around the
// handlers: identity, throttling, and the page cache.
type RouterDeps struct {
	Verifier  *auth.Verifier
	Throttler *auth.Throttler
	Pages     PageStore
	ListTTL   time.Duration

	Products *ProductHandler
	Orders   *OrderHandler
	Users    *UserHandler
}

func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(deps.Verifier.Middleware)

	productCache := PageCache(deps.Pages, CachePolicy{
		Namespace: "product_list",
		TTL:       deps.ListTTL,
	})
	orderCache := PageCache(deps.Pages, CachePolicy{
		Namespace: "order_list",
		TTL:       deps.ListTTL,
		VaryAuth:  true,
	})

	r.Route("/products", func(r chi.Router) {
		r.With(deps.Throttler.Limit("products"), productCache).Get("/", deps.Products.handleList)
		r.With(deps.Throttler.Limit("products"), auth.RequireStaff).Post("/", deps.Products.handleCreate)
		r.Get("/info", deps.Products.handleInfo)
		r.Get("/{id}", deps.Products.handleDetail)
		r.With(auth.RequireStaff).Put("/{id}", deps.Products.handleUpdate)
		r.With(auth.RequireStaff).Delete("/{id}", deps.Products.handleDelete)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(deps.Throttler.Limit("orders"))
		r.With(orderCache).Get("/", deps.Orders.handleList)
		r.Post("/", deps.Orders.handleCreate)
		r.Get("/{id}", deps.Orders.handleDetail)
		r.Put("/{id}", deps.Orders.handleUpdate)
		r.Delete("/{id}", deps.Orders.handleDelete)
	})

	r.Get("/users", deps.Users.handleList)
	r.Post("/users", deps.Users.handleRegister)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
