package promo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/promo"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type fakePromoStore struct {
	active    []promo.Promotion
	listCalls int
}

func (f *fakePromoStore) ListActive(context.Context, string, time.Time) ([]promo.Promotion, error) {
	f.listCalls++
	return f.active, nil
}

func (f *fakePromoStore) Create(_ context.Context, _ string, p promo.Promotion) (promo.Promotion, error) {
	f.active = append(f.active, p)
	return p, nil
}

func (f *fakePromoStore) Deactivate(context.Context, string, string) error { return nil }

type memoryCache struct {
	data map[string][]promo.Promotion
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	items, ok := m.data[key]
	if !ok {
		return false, nil
	}
	*(dst.(*[]promo.Promotion)) = items
	return true, nil
}

func (m *memoryCache) SetJSON(_ context.Context, key string, v any) error {
	if m.data == nil {
		m.data = map[string][]promo.Promotion{}
	}
	m.data[key] = v.([]promo.Promotion)
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func tenantCtx() context.Context {
	return tenant.WithTenant(context.Background(), "toko-utama")
}

func TestResolvePicksLargestDiscount(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	store := &fakePromoStore{active: []promo.Promotion{
		{Name: "Diskon 10%", Kind: promo.KindPercentage, PercentBps: 1000, Status: promo.StatusActive, Active: true,
			StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
		{Name: "Potongan 25rb", Kind: promo.KindFixed, Value: 25000, Status: promo.StatusActive, Active: true,
			StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
	}}
	svc := &promo.Service{Store: store, Now: func() time.Time { return now }}

	result, err := svc.Resolve(tenantCtx(), 100000, 3)
	require.NoError(t, err)
	require.NotNil(t, result.Promotion)
	require.Equal(t, "Potongan 25rb", result.Promotion.Name)
	require.EqualValues(t, 25000, result.Discount)
}

func TestActiveUsesCache(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	store := &fakePromoStore{active: []promo.Promotion{
		{Name: "Diskon 10%", Kind: promo.KindPercentage, PercentBps: 1000, Status: promo.StatusActive, Active: true,
			StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
	}}
	svc := &promo.Service{Store: store, Cache: &memoryCache{}, Now: func() time.Time { return now }}

	_, err := svc.Active(tenantCtx())
	require.NoError(t, err)
	_, err = svc.Active(tenantCtx())
	require.NoError(t, err)
	require.Equal(t, 1, store.listCalls)
}

func TestCreateBustsCache(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	store := &fakePromoStore{}
	cache := &memoryCache{}
	svc := &promo.Service{Store: store, Cache: cache, Now: func() time.Time { return now }}

	_, err := svc.Active(tenantCtx())
	require.NoError(t, err)

	_, err = svc.Create(tenantCtx(), promo.Promotion{
		Name: "Baru", Kind: promo.KindFixed, Value: 5000, Status: promo.StatusActive, Active: true,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	items, err := svc.Active(tenantCtx())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 2, store.listCalls)
}
