package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/tenant"
)

func TestResolverHeader(t *testing.T) {
	resolver := tenant.NewResolver("", "toko-utama")

	var got string
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = tenant.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("X-Tenant-ID", "cabang-bandung")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "cabang-bandung", got)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "toko-utama", got)
}

func TestFromContextMissing(t *testing.T) {
	_, ok := tenant.FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}

func TestPrefixKey(t *testing.T) {
	assert.Equal(t, "cabang-bandung:cart:abc", tenant.PrefixKey("cabang-bandung", "cart:abc"))
	assert.Equal(t, "cart:abc", tenant.PrefixKey("", "cart:abc"))
}
