package checkout

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loveline/loveline-api/internal/domain/catalog"
	"github.com/loveline/loveline-api/internal/domain/ledger"
	"github.com/loveline/loveline-api/internal/domain/order"
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

type placeOrderRequest struct {
	GoodsID     string `json:"goods_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,min=1,max=99"`
	RecipientID string `json:"recipient_id" validate:"omitempty,uuid"`
	ShipName    string `json:"ship_name"`
	ShipPhone   string `json:"ship_phone"`
	ShipAddress string `json:"ship_address"`
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req placeOrderRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	p := Purchase{
		GoodsID:  req.GoodsID,
		Quantity: req.Quantity,
		Shipping: Shipping{Name: req.ShipName, Phone: req.ShipPhone, Address: req.ShipAddress},
	}
	if req.RecipientID != "" {
		id, err := uuid.Parse(req.RecipientID)
		if err != nil {
			response.BadRequest(w, "recipient_id must be a valid UUID")
			return
		}
		p.RecipientID = uuid.NullUUID{UUID: id, Valid: true}
	}

	o, err := h.svc.PlaceOrder(r.Context(), userID, p)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			response.NotFound(w, "goods not found")
		case errors.Is(err, ErrInvalidQuantity):
			response.BadRequest(w, "quantity must be at least one")
		case errors.Is(err, ErrRecipientNotFound):
			response.NotFound(w, "recipient not found")
		case errors.Is(err, ErrNotFriends):
			response.Forbidden(w, "recipient is not a friend")
		case errors.Is(err, ErrMissingShippingInfo):
			response.BadRequest(w, "shipping information is incomplete")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			response.Conflict(w, "insufficient gold coins")
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, o)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	family := order.Family(r.URL.Query().Get("family"))
	if family != "" && !family.Valid() {
		response.BadRequest(w, "family must be one of: vip, coin, credit, goods")
		return
	}

	page, limit := parsePagination(r)
	orders, total, err := h.svc.ListOrders(r.Context(), userID, family, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.WithMeta(w, orders, response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasNext: page*limit < total,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	orderNo := chi.URLParam(r, "orderNo")
	o, err := h.svc.GetOrder(r.Context(), userID, orderNo)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			response.NotFound(w, "order not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, o)
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
