package report

import (
	"net/http"

	"github.com/kasirkita/backend-kasir/internal/common"
)

// Handler exposes the sales reporting endpoints.
type Handler struct {
	Service *Service
}

// DailySales handles GET /api/v1/reports/sales/daily.
func (h *Handler) DailySales(w http.ResponseWriter, r *http.Request) {
	period, err := h.Service.ParsePeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rows, err := h.Service.DailySales(r.Context(), period)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, rows)
}

// TopProducts handles GET /api/v1/reports/products/top.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	period, err := h.Service.ParsePeriod(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	limit, err := ParseTopLimit(r.URL.Query().Get("limit"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rows, err := h.Service.TopProducts(r.Context(), period, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, rows)
}
