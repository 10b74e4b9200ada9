package pos

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/pricing"
)

func newSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &SessionStore{Client: client, TTL: 12 * time.Hour}, mr
}

func TestSessionLoadMissingReturnsEmptyCart(t *testing.T) {
	store, _ := newSessionStore(t)

	cart, err := store.Load(context.Background(), "toko-utama", "kasir-1", 1100)
	require.NoError(t, err)
	require.True(t, cart.Empty())
	require.Equal(t, 1100, cart.TaxBps)
}

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	store, mr := newSessionStore(t)
	ctx := context.Background()

	cart := pricing.NewCart(1100)
	_, err := cart.AddItem(uuid.New(), "Kopi Susu", "KS-001", 18000, 2)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "toko-utama", "kasir-1", cart))

	ttl := mr.TTL("toko-utama:pos:cart:kasir-1")
	require.Equal(t, 12*time.Hour, ttl)

	got, err := store.Load(ctx, "toko-utama", "kasir-1", 1100)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	require.Equal(t, pricing.Money(36000), got.Totals.Subtotal)
}

func TestSessionIsolatedPerCashier(t *testing.T) {
	store, _ := newSessionStore(t)
	ctx := context.Background()

	cart := pricing.NewCart(0)
	_, err := cart.AddItem(uuid.New(), "Teh Manis", "TM-001", 5000, 1)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "toko-utama", "kasir-1", cart))

	other, err := store.Load(ctx, "toko-utama", "kasir-2", 0)
	require.NoError(t, err)
	require.True(t, other.Empty())
}

func TestSessionClear(t *testing.T) {
	store, mr := newSessionStore(t)
	ctx := context.Background()

	cart := pricing.NewCart(0)
	_, err := cart.AddItem(uuid.New(), "Teh Manis", "TM-001", 5000, 1)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "toko-utama", "kasir-1", cart))
	require.NoError(t, store.Clear(ctx, "toko-utama", "kasir-1"))
	require.False(t, mr.Exists("toko-utama:pos:cart:kasir-1"))
}

func TestSessionCorruptSnapshotFallsBack(t *testing.T) {
	store, mr := newSessionStore(t)
	require.NoError(t, mr.Set("toko-utama:pos:cart:kasir-1", "{not json"))

	cart, err := store.Load(context.Background(), "toko-utama", "kasir-1", 1100)
	require.NoError(t, err)
	require.True(t, cart.Empty())
}
