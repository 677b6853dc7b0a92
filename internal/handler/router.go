package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/techstore/pkg/health"
	"github.com/xenking/techstore/pkg/httpmiddleware"
)

// NewRouter mounts the API and health endpoints. Middlewares run inside the
// router so they can read the matched route pattern.
func NewRouter(h *Handler, hc *health.Health, middlewares ...httpmiddleware.Middleware) http.Handler {
	r := chi.NewRouter()
	for _, m := range middlewares {
		r.Use(m)
	}

	if hc != nil {
		r.Get("/livez", hc.LiveEndpoint)
		r.Get("/readyz", hc.ReadyEndpoint)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/vouchers", h.listVouchers)
		r.Post("/vouchers/apply", h.applyVoucher)

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Post("/checkout", h.createCheckout)
		r.Route("/checkout/{id}", func(r chi.Router) {
			r.Get("/", h.getCheckout)
			r.Put("/items", h.setCheckoutItems)
			r.Post("/voucher", h.applyCheckoutVoucher)
			r.Delete("/voucher", h.removeCheckoutVoucher)
			r.Post("/order", h.placeCheckoutOrder)
		})

		r.Post("/orders", h.placeOrder)
		r.Get("/orders/{id}", h.getOrder)

		r.Route("/admin/vouchers", func(r chi.Router) {
			r.Use(h.requireAPIKey)
			r.Get("/", h.adminListVouchers)
			r.Post("/", h.adminCreateVoucher)
			r.Get("/{code}", h.adminGetVoucher)
			r.Put("/{code}", h.adminReplaceVoucher)
			r.Patch("/{code}/active", h.adminSetActive)
			r.Delete("/{code}", h.adminDeleteVoucher)
		})
	})

	return r
}
