package settlement

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the gateway payment router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Initialize)
	r.Post("/complete", h.Complete)
	return r
}
