package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shopcore/storefront-api/internal/auth"
	"github.com/shopcore/storefront-api/internal/order"
)

type OrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderRequest replaces the entire item set; an empty list empties the
// order. The owner is never part of the payload.
type UpdateOrderRequest struct {
	Status string             `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
	Items  []OrderItemRequest `json:"items" validate:"dive"`
}

type OrderItemResponse struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	ItemSubtotal decimal.Decimal `json:"item_subtotal"`
}

type OrderResponse struct {
	OrderID    uuid.UUID           `json:"order_id"`
	User       uuid.UUID           `json:"user"`
	Status     string              `json:"status"`
	Items      []OrderItemResponse `json:"items"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	CreatedAt  time.Time           `json:"created_at"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	req, ok := requesterFrom(w, r)
	if !ok {
		return
	}

	filter, err := order.FilterFromQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.service.List(r.Context(), req, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list orders")
		return
	}

	responses := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}
	respondWithJSON(w, http.StatusOK, responses)
}

func (h *OrderHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	req, ok := requesterFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.service.Get(r.Context(), req, orderID)
	if err != nil {
		h.respondOrderError(w, err, orderID, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := requesterFrom(w, r)
	if !ok {
		return
	}

	var payload CreateOrderRequest
	if !h.decode(w, r, &payload) {
		return
	}

	o, err := h.service.Create(r.Context(), req, toItemInputs(payload.Items))
	if err != nil {
		h.respondOrderError(w, err, uuid.Nil, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := requesterFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var payload UpdateOrderRequest
	if !h.decode(w, r, &payload) {
		return
	}

	o, err := h.service.Update(r.Context(), req, orderID, order.Status(payload.Status), toItemInputs(payload.Items))
	if err != nil {
		h.respondOrderError(w, err, orderID, "Failed to update order")
		return
	}

	respondWithJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := requesterFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), req, orderID); err != nil {
		h.respondOrderError(w, err, orderID, "Failed to delete order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request, payload any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if err := h.validate.Struct(payload); err != nil {
		handleValidationError(w, err)
		return false
	}
	return true
}

func (h *OrderHandler) respondOrderError(w http.ResponseWriter, err error, orderID uuid.UUID, fallback string) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, order.ErrProductNotFound):
		respondWithFieldErrors(w, map[string]string{"items": "One or more items reference an unknown product"})
	case errors.Is(err, order.ErrNoItems):
		respondWithFieldErrors(w, map[string]string{"items": "Order must contain at least one item"})
	case errors.Is(err, order.ErrBadQuantity), errors.Is(err, order.ErrBadProductRef):
		respondWithFieldErrors(w, map[string]string{"items": err.Error()})
	case errors.Is(err, order.ErrInvalidTransition):
		respondWithFieldErrors(w, map[string]string{"status": err.Error()})
	default:
		evt := log.Error().Err(err)
		if orderID != uuid.Nil {
			evt = evt.Stringer("order_id", orderID)
		}
		evt.Msg("order operation failed")
		respondWithError(w, mapErrorToStatusCode(err), fallback)
	}
}

// requesterFrom converts the request identity into the order package's
// scoping type. Routes are behind RequireAuth, so a missing identity means a
// wiring mistake rather than a client error.
func requesterFrom(w http.ResponseWriter, r *http.Request) (order.Requester, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
		return order.Requester{}, false
	}
	return order.Requester{UserID: id.UserID, Staff: id.IsStaff}, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	orderID, err := uuid.FromString(idParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return uuid.Nil, false
	}
	return orderID, true
}

func toItemInputs(items []OrderItemRequest) []order.ItemInput {
	out := make([]order.ItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, order.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func toOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductPrice: item.ProductPrice,
			Quantity:     item.Quantity,
			ItemSubtotal: item.Subtotal(),
		})
	}
	return OrderResponse{
		OrderID:    o.OrderID,
		User:       o.UserID,
		Status:     o.Status.String(),
		Items:      items,
		TotalPrice: o.TotalPrice(),
		CreatedAt:  o.CreatedAt,
	}
}
