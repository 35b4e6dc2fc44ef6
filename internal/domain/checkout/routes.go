package checkout

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the goods order router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.PlaceOrder)
	r.Get("/", h.List)
	r.Get("/{orderNo}", h.Get)
	return r
}
