package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the wallet router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Balance)
	r.Get("/bills", h.Bills)
	r.Post("/translate", h.Translate)
	r.Post("/match", h.Match)
	return r
}

// SystemRoutes returns operator-only routes (reconciliation, quota reset)
func (h *Handler) SystemRoutes(authMiddleware, adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminOnly)
	r.Get("/reconcile", h.Reconcile)
	r.Post("/quota-reset", h.ResetQuotas)
	return r
}
