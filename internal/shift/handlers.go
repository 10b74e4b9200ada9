package shift

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/obs"
	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type storeProvider interface {
	Insert(ctx context.Context, s *Shift) error
	CurrentForCashier(ctx context.Context, tenantID, cashierID string) (*Shift, error)
	GetByID(ctx context.Context, tenantID, id string) (*Shift, error)
	CloseShift(ctx context.Context, s *Shift) error
}

type eventEmitter interface {
	Emit(ctx context.Context, topic, tenantID string, payload any) (events.Event, error)
}

// Handler exposes the shift lifecycle endpoints.
type Handler struct {
	Store    storeProvider
	Events   eventEmitter
	Validate *validator.Validate
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type openPayload struct {
	StartingCash int64 `json:"startingCash" validate:"gte=0"`
}

type closePayload struct {
	ActualCash int64  `json:"actualCash" validate:"gte=0"`
	Notes      string `json:"notes"`
}

// Open handles POST /api/v1/shifts/open.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	tenantID, cashier, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload openPayload
	if !h.decode(w, r, &payload) {
		return
	}

	sh, err := Open(tenantID, cashier.ID, cashier.Name, pricing.Money(payload.StartingCash), h.now())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Store.Insert(r.Context(), sh); err != nil {
		common.WriteError(w, err)
		return
	}

	h.emit(r.Context(), events.TopicShiftOpened, tenantID, map[string]any{
		"shiftId":      sh.ID.String(),
		"cashierId":    sh.CashierID,
		"startingCash": sh.StartingCash,
	})
	if obs.ShiftEventsTotal != nil {
		obs.ShiftEventsTotal.WithLabelValues("open").Inc()
	}
	h.Logger.Info().Str("shift_id", sh.ID.String()).Str("cashier_id", sh.CashierID).Msg("shift opened")
	common.JSONData(w, http.StatusCreated, sh)
}

// Close handles POST /api/v1/shifts/close: it reconciles the counted
// drawer against the expectation and returns the closing summary.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	tenantID, cashier, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload closePayload
	if !h.decode(w, r, &payload) {
		return
	}

	sh, err := h.Store.CurrentForCashier(r.Context(), tenantID, cashier.ID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := sh.Close(pricing.Money(payload.ActualCash), payload.Notes, h.now()); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Store.CloseShift(r.Context(), sh); err != nil {
		common.WriteError(w, err)
		return
	}

	h.emit(r.Context(), events.TopicShiftClosed, tenantID, map[string]any{
		"shiftId":  sh.ID.String(),
		"variance": sh.Variance,
	})
	if obs.ShiftEventsTotal != nil {
		obs.ShiftEventsTotal.WithLabelValues("close").Inc()
	}
	if obs.ShiftVarianceRupiah != nil {
		obs.ShiftVarianceRupiah.Set(float64(sh.Variance))
	}
	h.Logger.Info().
		Str("shift_id", sh.ID.String()).
		Int64("variance", int64(sh.Variance)).
		Msg("shift closed")
	common.JSONData(w, http.StatusOK, sh.Summarize())
}

// Current handles GET /api/v1/shifts/current.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	tenantID, cashier, ok := h.session(w, r)
	if !ok {
		return
	}
	sh, err := h.Store.CurrentForCashier(r.Context(), tenantID, cashier.ID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sh)
}

// CurrentSummary handles GET /api/v1/shifts/current/summary.
func (h *Handler) CurrentSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, cashier, ok := h.session(w, r)
	if !ok {
		return
	}
	sh, err := h.Store.CurrentForCashier(r.Context(), tenantID, cashier.ID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sh.Summarize())
}

// Summary handles GET /api/v1/shifts/{id}/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := h.session(w, r)
	if !ok {
		return
	}
	sh, err := h.Store.GetByID(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, sh.Summarize())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, common.Cashier, bool) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant tidak dikenal", nil)
		return "", common.Cashier{}, false
	}
	cashier, ok := common.CashierFromContext(r.Context())
	if !ok || cashier.ID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sesi kasir tidak ditemukan", nil)
		return "", common.Cashier{}, false
	}
	return tenantID, cashier, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "permintaan tidak valid", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "data permintaan tidak lengkap", nil)
			return false
		}
	}
	return true
}

func (h *Handler) emit(ctx context.Context, topic, tenantID string, payload any) {
	if h.Events == nil {
		return
	}
	if _, err := h.Events.Emit(ctx, topic, tenantID, payload); err != nil {
		h.Logger.Error().Err(err).Str("topic", topic).Msg("emit shift event failed")
	}
}
