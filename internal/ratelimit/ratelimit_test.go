package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/common"
)

func newMiddleware(t *testing.T, requests int64) *Middleware {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m, err := New(client, requests, time.Minute, nil, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAllowsWithinLimit(t *testing.T) {
	handler := newMiddleware(t, 3).Handler(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestRejectsOverLimit(t *testing.T) {
	handler := newMiddleware(t, 2).Handler(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "terlalu banyak permintaan")
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestBucketsPerCashier(t *testing.T) {
	handler := newMiddleware(t, 1).Handler(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/cart", nil)
	first = first.WithContext(common.WithCashier(first.Context(), common.Cashier{ID: "kasir-1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// A different cashier from the same address gets a fresh bucket.
	second := httptest.NewRequest(http.MethodGet, "/cart", nil)
	second = second.WithContext(common.WithCashier(second.Context(), common.Cashier{ID: "kasir-2"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	require.Equal(t, http.StatusOK, rec.Code)

	// The first cashier is now over the limit.
	third := httptest.NewRequest(http.MethodGet, "/cart", nil)
	third = third.WithContext(common.WithCashier(third.Context(), common.Cashier{ID: "kasir-1"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, third)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
