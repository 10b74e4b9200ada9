package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/common"
)

func newAuthenticator() Authenticator {
	return Authenticator{Secret: []byte("rahasia-sekali"), Issuer: "kasirkita"}
}

func protected(t *testing.T, a Authenticator) (http.Handler, *common.Cashier) {
	t.Helper()
	var seen common.Cashier
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := common.CashierFromContext(r.Context())
		require.True(t, ok)
		seen = c
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &seen
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	a := newAuthenticator()
	token, err := a.IssueToken("kasir-1", "Budi", time.Hour)
	require.NoError(t, err)

	handler, seen := protected(t, a)
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "kasir-1", seen.ID)
	require.Equal(t, "Budi", seen.Name)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	handler, _ := protected(t, newAuthenticator())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "token tidak ditemukan")
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	a := newAuthenticator()
	token, err := a.IssueToken("kasir-1", "Budi", -time.Minute)
	require.NoError(t, err)

	handler, _ := protected(t, a)
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRejectsWrongSecret(t *testing.T) {
	other := Authenticator{Secret: []byte("kunci-lain"), Issuer: "kasirkita"}
	token, err := other.IssueToken("kasir-1", "Budi", time.Hour)
	require.NoError(t, err)

	handler, _ := protected(t, newAuthenticator())
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
