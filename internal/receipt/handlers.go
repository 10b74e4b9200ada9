package receipt

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/tenant"
	"github.com/kasirkita/backend-kasir/internal/txn"
)

type transactionGetter interface {
	GetByID(ctx context.Context, tenantID, id string) (payment.Transaction, error)
}

// Handler renders receipts for completed transactions.
type Handler struct {
	Store   transactionGetter
	Company CompanyInfo
}

// Get handles GET /api/v1/transactions/{id}/receipt as plain text.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := tenant.FromContext(r.Context())
	t, err := h.Store.GetByID(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, txn.ErrTransactionNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaksi tidak ditemukan", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(Render(t, h.Company)))
}
