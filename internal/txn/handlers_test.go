package txn_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/shift"
	"github.com/kasirkita/backend-kasir/internal/tenant"
	"github.com/kasirkita/backend-kasir/internal/txn"
)

type fakeTxnStore struct {
	transactions map[string]payment.Transaction
	refunded     map[string]bool
	currentShift *uuid.UUID
	noOpenShift  bool
}

func (f *fakeTxnStore) List(_ context.Context, _ string, _ txn.ListParams) ([]payment.Transaction, int64, error) {
	var out []payment.Transaction
	for _, t := range f.transactions {
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (f *fakeTxnStore) GetByID(_ context.Context, _ string, id string) (payment.Transaction, error) {
	t, ok := f.transactions[id]
	if !ok {
		return payment.Transaction{}, txn.ErrTransactionNotFound
	}
	return t, nil
}

func (f *fakeTxnStore) Refund(_ context.Context, _ string, id, reason string, by common.Cashier, now time.Time) (payment.Transaction, error) {
	original, ok := f.transactions[id]
	if !ok {
		return payment.Transaction{}, common.NewAppError("NOT_FOUND", "transaksi tidak ditemukan", http.StatusNotFound, txn.ErrTransactionNotFound)
	}
	if f.refunded[id] {
		return payment.Transaction{}, common.NewAppError("ALREADY_REFUNDED", "transaksi sudah pernah direfund", http.StatusConflict, txn.ErrAlreadyRefunded)
	}
	if f.noOpenShift {
		return payment.Transaction{}, shift.NoActiveShiftError()
	}
	if f.refunded == nil {
		f.refunded = map[string]bool{}
	}
	f.refunded[id] = true
	refund := original
	refund.ID = uuid.New()
	refund.RefundOf = &original.ID
	refund.Note = reason
	refund.CashierID = by.ID
	refund.CashierName = by.Name
	if f.currentShift != nil {
		refund.ShiftID = *f.currentShift
	}
	refund.Totals.Total = -original.Totals.Total
	refund.CreatedAt = now
	return refund, nil
}

func saleFixture() payment.Transaction {
	return payment.Transaction{
		ID:       uuid.New(),
		OrderNo:  "TRX-20250310-000001",
		TenantID: "toko-utama",
		ShiftID:  uuid.New(),
		Totals:   pricing.Totals{Subtotal: 100000, Tax: 11000, Total: 111000},
		Payments: []payment.Payment{{Method: payment.MethodCash, Amount: 111000}},
	}
}

type captureEmitter struct {
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic, _ string, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic}, nil
}

func newRouter(store *fakeTxnStore, emitter *captureEmitter) http.Handler {
	handler := &txn.Handler{
		Store:  store,
		Events: emitter,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC) },
	}
	router := chi.NewRouter()
	router.Get("/api/v1/transactions", handler.List)
	router.Get("/api/v1/transactions/{id}", handler.Get)
	router.Post("/api/v1/transactions/{id}/refund", handler.Refund)
	return router
}

func request(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := tenant.WithTenant(req.Context(), "toko-utama")
	ctx = common.WithCashier(ctx, common.Cashier{ID: "kasir-2", Name: "Sari"})
	return req.WithContext(ctx)
}

func TestGetTransaction(t *testing.T) {
	sale := saleFixture()
	store := &fakeTxnStore{transactions: map[string]payment.Transaction{sale.ID.String(): sale}}
	router := newRouter(store, &captureEmitter{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, request(http.MethodGet, "/api/v1/transactions/"+sale.ID.String()))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data payment.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, sale.OrderNo, resp.Data.OrderNo)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, request(http.MethodGet, "/api/v1/transactions/"+uuid.NewString()))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRefundOnce(t *testing.T) {
	sale := saleFixture()
	store := &fakeTxnStore{transactions: map[string]payment.Transaction{sale.ID.String(): sale}}
	emitter := &captureEmitter{}
	router := newRouter(store, emitter)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, request(http.MethodPost, "/api/v1/transactions/"+sale.ID.String()+"/refund"))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, []string{events.TopicTransactionRefunded}, emitter.topics)

	var resp struct {
		Data payment.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.RefundOf)
	require.EqualValues(t, -111000, resp.Data.Totals.Total)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, request(http.MethodPost, "/api/v1/transactions/"+sale.ID.String()+"/refund"))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "sudah pernah direfund")
}

func TestRefundRecordsIntoRefundersCurrentShift(t *testing.T) {
	sale := saleFixture()
	laterShift := uuid.New()
	store := &fakeTxnStore{
		transactions: map[string]payment.Transaction{sale.ID.String(): sale},
		currentShift: &laterShift,
	}
	router := newRouter(store, &captureEmitter{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, request(http.MethodPost, "/api/v1/transactions/"+sale.ID.String()+"/refund"))
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Data payment.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, laterShift, resp.Data.ShiftID)
	require.Equal(t, "kasir-2", resp.Data.CashierID)
	require.NotEqual(t, sale.ShiftID, resp.Data.ShiftID)
}

func TestRefundWithoutOpenShift(t *testing.T) {
	sale := saleFixture()
	store := &fakeTxnStore{
		transactions: map[string]payment.Transaction{sale.ID.String(): sale},
		noOpenShift:  true,
	}
	router := newRouter(store, &captureEmitter{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, request(http.MethodPost, "/api/v1/transactions/"+sale.ID.String()+"/refund"))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "NO_ACTIVE_SHIFT")
}

func TestRefundRequiresCashierSession(t *testing.T) {
	sale := saleFixture()
	store := &fakeTxnStore{transactions: map[string]payment.Transaction{sale.ID.String(): sale}}
	router := newRouter(store, &captureEmitter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/"+sale.ID.String()+"/refund", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), "toko-utama"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListTransactions(t *testing.T) {
	sale := saleFixture()
	store := &fakeTxnStore{transactions: map[string]payment.Transaction{sale.ID.String(): sale}}
	router := newRouter(store, &captureEmitter{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, request(http.MethodGet, "/api/v1/transactions"))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data       []payment.Transaction `json:"data"`
		Pagination common.Pagination     `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, 1, resp.Pagination.TotalItems)
}
