package txn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/obs"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type storeProvider interface {
	List(ctx context.Context, tenantID string, params ListParams) ([]payment.Transaction, int64, error)
	GetByID(ctx context.Context, tenantID, id string) (payment.Transaction, error)
	Refund(ctx context.Context, tenantID, id, reason string, by common.Cashier, now time.Time) (payment.Transaction, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, topic, tenantID string, payload any) (events.Event, error)
}

// Handler exposes transaction history and refund endpoints.
type Handler struct {
	Store  storeProvider
	Events eventEmitter
	Logger zerolog.Logger
	Now    func() time.Time
}

type refundPayload struct {
	Reason string `json:"reason"`
}

// List handles GET /api/v1/transactions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	page, limit := common.ParsePagination(r, 20)
	params := ListParams{
		ShiftID: r.URL.Query().Get("shiftId"),
		Page:    page,
		Limit:   limit,
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "format tanggal tidak valid", nil)
			return
		}
		params.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "format tanggal tidak valid", nil)
			return
		}
		params.To = t
	}

	items, total, err := h.Store.List(r.Context(), tenantID, params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if items == nil {
		items = []payment.Transaction{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: int(total)},
	})
}

// Get handles GET /api/v1/transactions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	t, err := h.Store.GetByID(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaksi tidak ditemukan", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, t)
}

// Refund handles POST /api/v1/transactions/{id}/refund.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	cashier, ok := common.CashierFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sesi kasir tidak ditemukan", nil)
		return
	}
	var payload refundPayload
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}
	refund, err := h.Store.Refund(r.Context(), tenantID, chi.URLParam(r, "id"), payload.Reason, cashier, h.now())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if obs.TransactionsTotal != nil {
		obs.TransactionsTotal.WithLabelValues(tenderClass(refund.Payments), "refund").Inc()
	}
	if h.Events != nil {
		if _, err := h.Events.Emit(r.Context(), events.TopicTransactionRefunded, tenantID, map[string]any{
			"transactionId": refund.ID.String(),
			"orderNo":       refund.OrderNo,
			"refundOf":      chi.URLParam(r, "id"),
			"total":         int64(refund.Totals.Total),
		}); err != nil {
			h.Logger.Warn().Err(err).Msg("emit refund event")
		}
	}
	h.Logger.Info().
		Str("transaction_id", refund.ID.String()).
		Str("refund_of", chi.URLParam(r, "id")).
		Int64("total", int64(refund.Totals.Total)).
		Msg("transaction refunded")
	common.JSONData(w, http.StatusCreated, refund)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func tenderClass(payments []payment.Payment) string {
	if len(payments) == 0 {
		return "none"
	}
	if len(payments) > 1 {
		return "split"
	}
	return string(payments[0].Method)
}
