package transfer

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the gift transfer router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Send)
	r.Get("/", h.List)
	r.Post("/{transferID}/claim", h.Claim)
	return r
}
