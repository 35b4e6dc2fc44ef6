package settlement

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/loveline/loveline-api/internal/domain/catalog"
	"github.com/loveline/loveline-api/internal/domain/order"
	"github.com/loveline/loveline-api/internal/middleware"
	"github.com/loveline/loveline-api/internal/pkg/paygate"
	"github.com/loveline/loveline-api/internal/pkg/response"
	"github.com/loveline/loveline-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type initializeRequest struct {
	Family    string `json:"family" validate:"required,family"`
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=36"`
}

// Initialize quotes the selection and opens a pending order.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req initializeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	o, err := h.svc.InitializePayment(r.Context(), userID, Selection{
		Family:    order.Family(req.Family),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			response.NotFound(w, "product not found")
		case errors.Is(err, ErrUnsupportedFamily):
			response.BadRequest(w, "family cannot be paid through the gateway")
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, o)
}

type completeRequest struct {
	OrderNo      string `json:"order_no" validate:"required"`
	Family       string `json:"family" validate:"required,family"`
	GatewayTxnID string `json:"gateway_txn_id" validate:"required"`
}

// Complete verifies the gateway payment and settles the order.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req completeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	balance, err := h.svc.CompletePayment(r.Context(), userID, req.OrderNo, order.Family(req.Family), req.GatewayTxnID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			response.NotFound(w, "order not found")
		case errors.Is(err, order.ErrAlreadySettled):
			response.Conflict(w, "order already settled")
		case errors.Is(err, order.ErrBadState):
			response.Conflict(w, "order is not settleable")
		case errors.Is(err, ErrFamilyMismatch):
			response.BadRequest(w, "family does not match order")
		case errors.Is(err, ErrUnsupportedFamily):
			response.BadRequest(w, "family cannot be paid through the gateway")
		case errors.Is(err, ErrPaymentNotVerified):
			response.Error(w, http.StatusUnprocessableEntity, "PAYMENT_NOT_VERIFIED", err.Error())
		case errors.Is(err, paygate.ErrGatewayUnavailable):
			response.BadGateway(w, "payment gateway unavailable, retry later")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, balance)
}
