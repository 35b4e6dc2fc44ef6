package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/loveline/loveline-api/internal/middleware"
	"github.com/loveline/loveline-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, balance)
}

func (h *Handler) Bills(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := parsePagination(r)
	entries, total, err := h.svc.ListBills(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.WithMeta(w, entries, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasNext: page*limit < total,
	})
}

type translateRequest struct {
	Characters int    `json:"characters"`
	MessageID  string `json:"message_id"`
}

func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req translateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	balance, err := h.svc.SpendTranslation(r.Context(), userID, req.Characters, req.MessageID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "characters must be greater than zero")
		case errors.Is(err, ErrInsufficientBalance):
			response.Conflict(w, "insufficient translation credits")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, balance)
}

func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.ConsumeMatch(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrQuotaExhausted) {
			response.Conflict(w, "daily match quota exhausted")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, balance)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("user_id")
	userID, err := uuid.Parse(rawID)
	if err != nil {
		response.BadRequest(w, "user_id query parameter must be a valid UUID")
		return
	}

	result, err := h.svc.Reconcile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			response.NotFound(w, "account not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, result)
}

func (h *Handler) ResetQuotas(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ResetDailyQuotas(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"accounts_reset": n})
}

func parsePagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
