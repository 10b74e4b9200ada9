package promo

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// Handler exposes promotion endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type promotionPayload struct {
	Name        string    `json:"name" validate:"required"`
	Kind        string    `json:"kind" validate:"required,oneof=percentage fixed_amount buy_x_get_y"`
	PercentBps  int32     `json:"percentBps" validate:"gte=0,lte=10000"`
	Value       int64     `json:"value" validate:"gte=0"`
	BuyQty      int       `json:"buyQty" validate:"gte=0"`
	GetQty      int       `json:"getQty" validate:"gte=0"`
	MinPurchase int64     `json:"minPurchase" validate:"gte=0"`
	MaxDiscount int64     `json:"maxDiscount" validate:"gte=0"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
	EndsAt      time.Time `json:"endsAt" validate:"required"`
}

type previewPayload struct {
	OrderTotal int64 `json:"orderTotal" validate:"gte=0"`
	Qty        int   `json:"qty" validate:"gte=0"`
}

// Active handles GET /api/v1/promotions/active.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.Active(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, items)
}

// Preview handles POST /api/v1/promotions/preview, a dry-run of best-promotion
// resolution for a hypothetical order.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var payload previewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "permintaan tidak valid", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "data pratinjau tidak valid", nil)
			return
		}
	}
	result, err := h.Service.Resolve(r.Context(), pricing.Money(payload.OrderTotal), payload.Qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, result)
}

// Create handles POST /api/v1/promotions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload promotionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "permintaan tidak valid", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "data promo tidak lengkap", nil)
			return
		}
	}
	if !payload.EndsAt.After(payload.StartsAt) {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "periode promo tidak valid", nil)
		return
	}
	created, err := h.Service.Create(r.Context(), Promotion{
		Name:        payload.Name,
		Kind:        Kind(payload.Kind),
		PercentBps:  payload.PercentBps,
		Value:       pricing.Money(payload.Value),
		BuyQty:      payload.BuyQty,
		GetQty:      payload.GetQty,
		MinPurchase: pricing.Money(payload.MinPurchase),
		MaxDiscount: pricing.Money(payload.MaxDiscount),
		StartsAt:    payload.StartsAt,
		EndsAt:      payload.EndsAt,
		Status:      StatusActive,
		Active:      true,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, created)
}

// Deactivate handles DELETE /api/v1/promotions/{id}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Deactivate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promo tidak ditemukan", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
