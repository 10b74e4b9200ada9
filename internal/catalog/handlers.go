package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// Handler exposes product endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type productPayload struct {
	SKU        string `json:"sku" validate:"required"`
	Barcode    string `json:"barcode"`
	Name       string `json:"name" validate:"required"`
	Category   string `json:"category"`
	UnitPrice  int64  `json:"unitPrice" validate:"gte=0"`
	Stock      int    `json:"stock"`
	TrackStock bool   `json:"trackStock"`
	Active     *bool  `json:"active"`
}

// Products handles GET /api/v1/products with search and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	params, err := h.Service.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.ListProducts(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	product, err := h.Service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, product)
}

// ProductByBarcode handles GET /api/v1/products/barcode/{code}.
func (h *Handler) ProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := h.Service.GetByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/v1/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	product, err := h.Service.CreateProduct(r.Context(), Product{
		SKU:        payload.SKU,
		Barcode:    payload.Barcode,
		Name:       payload.Name,
		Category:   payload.Category,
		UnitPrice:  pricing.Money(payload.UnitPrice),
		Stock:      payload.Stock,
		TrackStock: payload.TrackStock,
		Active:     active,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/v1/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	product, err := h.Service.UpdateProduct(r.Context(), Product{
		ID:         chi.URLParam(r, "id"),
		SKU:        payload.SKU,
		Barcode:    payload.Barcode,
		Name:       payload.Name,
		Category:   payload.Category,
		UnitPrice:  pricing.Money(payload.UnitPrice),
		Stock:      payload.Stock,
		TrackStock: payload.TrackStock,
		Active:     active,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, product)
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (productPayload, bool) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "permintaan tidak valid", nil)
		return payload, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "data produk tidak lengkap", validationDetails(err))
			return payload, false
		}
	}
	return payload, true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return map[string]any{"fields": fields}
}
