package transfer

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/middleware"
	"github.com/loveline/loveline-api/internal/pkg/response"
	"github.com/loveline/loveline-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type sendRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	Amount      int64  `json:"amount" validate:"required,min=1"`
	Message     string `json:"message" validate:"omitempty,max=200"`
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req sendRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		response.BadRequest(w, "recipient_id must be a valid UUID")
		return
	}

	t, err := h.svc.Send(r.Context(), userID, recipientID, req.Amount, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		case errors.Is(err, ErrSelfTransfer):
			response.BadRequest(w, "cannot gift coins to yourself")
		case errors.Is(err, ErrRecipientNotFound):
			response.NotFound(w, "recipient not found")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			response.Conflict(w, "insufficient gold coins")
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, t)
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	transferID, err := uuid.Parse(chi.URLParam(r, "transferID"))
	if err != nil {
		response.BadRequest(w, "transfer id must be a valid UUID")
		return
	}

	balance, err := h.svc.Claim(r.Context(), userID, transferID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTransferNotFound):
			response.NotFound(w, "transfer not found")
		case errors.Is(err, ErrForbidden):
			response.Forbidden(w, "only the recipient can claim this gift")
		case errors.Is(err, ErrAlreadyClaimed):
			response.Conflict(w, "transfer already claimed")
		case errors.Is(err, ErrTransferExpired):
			response.Conflict(w, "transfer expired")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, balance)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := parsePagination(r)
	transfers, total, err := h.svc.List(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.WithMeta(w, transfers, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasNext: page*limit < total,
	})
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
