package shift

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type fakeShiftStore struct {
	current   *Shift
	inserted  *Shift
	closed    *Shift
	lateEntry *Entry
}

func (f *fakeShiftStore) Insert(_ context.Context, s *Shift) error {
	if f.current != nil && f.current.Status == StatusOpen {
		return AlreadyOpenError()
	}
	f.inserted = s
	f.current = s
	return nil
}

func (f *fakeShiftStore) CurrentForCashier(_ context.Context, _, _ string) (*Shift, error) {
	if f.current == nil || f.current.Status != StatusOpen {
		return nil, NoActiveShiftError()
	}
	return f.current, nil
}

func (f *fakeShiftStore) GetByID(_ context.Context, _, id string) (*Shift, error) {
	if f.current != nil && f.current.ID.String() == id {
		return f.current, nil
	}
	return nil, common.NewAppError("NOT_FOUND", "shift tidak ditemukan", http.StatusNotFound, nil)
}

// CloseShift mirrors the store: the reconciliation is recomputed from
// the persisted counters at close time, picking up sales that committed
// after the handler loaded the shift.
func (f *fakeShiftStore) CloseShift(_ context.Context, s *Shift) error {
	if f.lateEntry != nil {
		s.CashSales += f.lateEntry.CashPortion
		s.NonCashSales += f.lateEntry.Total - f.lateEntry.CashPortion
		s.TotalSales = s.CashSales + s.NonCashSales
	}
	s.ExpectedCash = s.StartingCash + s.CashSales
	s.Variance = s.ActualCash - s.ExpectedCash
	f.closed = s
	return nil
}

type captureEmitter struct {
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic, tenantID string, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{TenantID: tenantID, Topic: topic}, nil
}

func newHandler(store *fakeShiftStore, emitter *captureEmitter) *Handler {
	return &Handler{
		Store:    store,
		Events:   emitter,
		Validate: validator.New(),
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2025, 8, 12, 8, 0, 0, 0, time.UTC) },
	}
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/shifts/open", h.Open)
	r.Post("/shifts/close", h.Close)
	r.Get("/shifts/current", h.Current)
	r.Get("/shifts/{id}/summary", h.Summary)
	return r
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := tenant.WithTenant(req.Context(), "toko-utama")
	ctx = common.WithCashier(ctx, common.Cashier{ID: "kasir-1", Name: "Budi"})
	return req.WithContext(ctx)
}

func TestOpenShift(t *testing.T) {
	store := &fakeShiftStore{}
	emitter := &captureEmitter{}
	router := newRouter(newHandler(store, emitter))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/open", `{"startingCash":100000}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, store.inserted)
	require.Equal(t, "kasir-1", store.inserted.CashierID)
	require.Equal(t, []string{events.TopicShiftOpened}, emitter.topics)

	var body struct {
		Data Shift `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, StatusOpen, body.Data.Status)
	require.EqualValues(t, 100000, body.Data.StartingCash)
}

func TestOpenShiftTwiceConflicts(t *testing.T) {
	store := &fakeShiftStore{}
	router := newRouter(newHandler(store, &captureEmitter{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/open", `{"startingCash":100000}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/open", `{"startingCash":50000}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "masih ada shift yang terbuka")
}

func TestOpenShiftNegativeCash(t *testing.T) {
	router := newRouter(newHandler(&fakeShiftStore{}, &captureEmitter{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/open", `{"startingCash":-5}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCloseShiftReportsVariance(t *testing.T) {
	store := &fakeShiftStore{}
	emitter := &captureEmitter{}
	router := newRouter(newHandler(store, emitter))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/open", `{"startingCash":100000}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	// A cash sale lands in the drawer before closing.
	require.NoError(t, store.current.Record(Entry{Total: 36000, CashPortion: 36000}))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/close", `{"actualCash":135000,"notes":"selisih kembalian"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 136000, body.Data.ExpectedCash)
	require.EqualValues(t, -1000, body.Data.Variance)
	require.EqualValues(t, 36000, body.Data.TotalSales)
	require.Equal(t, []string{events.TopicShiftOpened, events.TopicShiftClosed}, emitter.topics)
	require.NotNil(t, store.closed)
	require.Equal(t, StatusClosed, store.closed.Status)
}

func TestCloseShiftCountsSaleCommittedDuringClose(t *testing.T) {
	store := &fakeShiftStore{}
	router := newRouter(newHandler(store, &captureEmitter{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/open", `{"startingCash":100000}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	// A checkout commits between the handler's read and the closing
	// update; the reconciliation must still include it.
	store.lateEntry = &Entry{Total: 50000, CashPortion: 50000}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/close", `{"actualCash":150000}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 150000, body.Data.ExpectedCash)
	require.EqualValues(t, 0, body.Data.Variance)
	require.EqualValues(t, 50000, body.Data.TotalSales)
}

func TestCloseWithoutOpenShift(t *testing.T) {
	router := newRouter(newHandler(&fakeShiftStore{}, &captureEmitter{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/close", `{"actualCash":0}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "belum ada shift")
}

func TestCurrentShift(t *testing.T) {
	store := &fakeShiftStore{}
	router := newRouter(newHandler(store, &captureEmitter{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/shifts/current", ""))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/shifts/open", `{"startingCash":100000}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/shifts/current", ""))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSummaryUnknownShift(t *testing.T) {
	router := newRouter(newHandler(&fakeShiftStore{}, &captureEmitter{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/shifts/0f8fad5b-d9cb-469f-a165-70867728950e/summary", ""))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShiftEndpointsRequireCashier(t *testing.T) {
	router := newRouter(newHandler(&fakeShiftStore{}, &captureEmitter{}))

	req := httptest.NewRequest(http.MethodGet, "/shifts/current", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), "toko-utama"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
