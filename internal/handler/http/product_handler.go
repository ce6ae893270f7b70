package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/shopcore/storefront-api/internal/product"
)

type ProductRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"-"`
	Stock       int              `json:"stock" validate:"gte=0"`
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type ProductInfoResponse struct {
	Products []ProductResponse `json:"products"`
	Count    int               `json:"count"`
	MaxPrice decimal.Decimal   `json:"max_price"`
}

type ProductHandler struct {
	service  product.Service
	validate *validator.Validate
	// listDelay simulates a slow catalog query so the value of the list
	// cache is observable. Zero in any real deployment.
	listDelay time.Duration
}

func NewProductHandler(service product.Service, listDelay time.Duration) *ProductHandler {
	return &ProductHandler{
		service:   service,
		validate:  validator.New(),
		listDelay: listDelay,
	}
}

func (h *ProductHandler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := product.FilterFromQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.listDelay > 0 {
		time.Sleep(h.listDelay)
	}

	products, err := h.service.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list products via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *ProductHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Error().Err(err).Int64("product_id", id).Msg("failed to get product via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get product")
		return
	}

	respondWithJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		log.Error().Err(err).Msg("failed to create product via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, toProductResponse(created))
}

func (h *ProductHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	p.ID = id

	updated, err := h.service.Update(r.Context(), p)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Error().Err(err).Int64("product_id", id).Msg("failed to update product via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to update product")
		return
	}

	respondWithJSON(w, http.StatusOK, toProductResponse(updated))
}

func (h *ProductHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Product not found")
			return
		}
		log.Error().Err(err).Int64("product_id", id).Msg("failed to delete product via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Info(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build product info via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to build product info")
		return
	}

	respondWithJSON(w, http.StatusOK, ProductInfoResponse{
		Products: toProductResponses(info.Products),
		Count:    info.Count,
		MaxPrice: info.MaxPrice,
	})
}

// decodeProduct parses and validates a write payload. The price checks are
// explicit because validator tags cannot inspect decimals; the pointer makes
// an omitted price distinguishable from a zero one.
func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*product.Product, bool) {
	var req ProductRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return nil, false
	}

	if err := h.validate.Struct(req); err != nil {
		handleValidationError(w, err)
		return nil, false
	}

	if req.Price == nil {
		respondWithFieldErrors(w, map[string]string{"price": "This field is required"})
		return nil, false
	}
	if req.Price.IsNegative() {
		respondWithFieldErrors(w, map[string]string{"price": "Price cannot be negative"})
		return nil, false
	}

	return &product.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       req.Stock,
	}, true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return 0, false
	}
	return id, true
}

func toProductResponse(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func toProductResponses(products []product.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	return out
}
