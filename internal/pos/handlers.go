package pos

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// Handler exposes the cart session and checkout endpoints.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
}

type addItemPayload struct {
	ProductID string `json:"productId"`
	Barcode   string `json:"barcode"`
	Qty       int    `json:"qty" validate:"gte=0"`
}

type qtyPayload struct {
	Qty int `json:"qty" validate:"gte=0"`
}

type lineDiscountPayload struct {
	PercentBps int32 `json:"percentBps" validate:"gte=0,lte=10000"`
	Amount     int64 `json:"amount" validate:"gte=0"`
}

type cartDiscountPayload struct {
	Kind        string `json:"kind" validate:"required,oneof=percent fixed"`
	PercentBps  int32  `json:"percentBps" validate:"gte=0,lte=10000"`
	Amount      int64  `json:"amount" validate:"gte=0"`
	Description string `json:"description"`
}

type checkoutPayload struct {
	Payments []paymentPayload `json:"payments" validate:"required,min=1,dive"`
}

type paymentPayload struct {
	Method    string `json:"method" validate:"required"`
	Amount    int64  `json:"amount" validate:"gte=0"`
	Reference string `json:"reference"`
	Received  int64  `json:"received" validate:"gte=0"`
}

// Cart handles GET /api/v1/cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Service.Cart(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemPayload
	if !h.decode(w, r, &payload) {
		return
	}
	cart, err := h.Service.AddItem(r.Context(), AddItemInput{
		ProductID: payload.ProductID,
		Barcode:   payload.Barcode,
		Qty:       payload.Qty,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// UpdateQty handles PATCH /api/v1/cart/items/{lineId}.
func (h *Handler) UpdateQty(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}
	var payload qtyPayload
	if !h.decode(w, r, &payload) {
		return
	}
	cart, err := h.Service.UpdateQty(r.Context(), lineID, payload.Qty)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// SetLineDiscount handles PUT /api/v1/cart/items/{lineId}/discount.
func (h *Handler) SetLineDiscount(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}
	var payload lineDiscountPayload
	if !h.decode(w, r, &payload) {
		return
	}
	cart, err := h.Service.SetLineDiscount(r.Context(), lineID, payload.PercentBps, pricing.Money(payload.Amount))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/v1/cart/items/{lineId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.lineID(w, r)
	if !ok {
		return
	}
	cart, err := h.Service.RemoveItem(r.Context(), lineID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// ApplyDiscount handles POST /api/v1/cart/discount.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var payload cartDiscountPayload
	if !h.decode(w, r, &payload) {
		return
	}
	cart, err := h.Service.ApplyDiscount(r.Context(), pricing.Discount{
		Kind:        pricing.DiscountKind(payload.Kind),
		PercentBps:  payload.PercentBps,
		Amount:      pricing.Money(payload.Amount),
		Description: payload.Description,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// ApplyPromotion handles POST /api/v1/cart/promotion: it applies the
// best active promotion as the cart discount.
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Service.ApplyBestPromotion(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// RemoveDiscount handles DELETE /api/v1/cart/discount.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Service.RemoveDiscount(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, cart)
}

// ClearCart handles DELETE /api/v1/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.ClearCart(r.Context()); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if !h.decode(w, r, &payload) {
		return
	}
	payments := make([]payment.Payment, 0, len(payload.Payments))
	for _, p := range payload.Payments {
		payments = append(payments, payment.Payment{
			Method:    payment.Method(p.Method),
			Amount:    pricing.Money(p.Amount),
			Reference: p.Reference,
			Received:  pricing.Money(p.Received),
		})
	}
	transaction, err := h.Service.Checkout(r.Context(), payments)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, transaction)
}

func (h *Handler) lineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "lineId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "id item keranjang tidak valid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "permintaan tidak valid", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "data permintaan tidak lengkap", validationDetails(err))
			return false
		}
	}
	return true
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
