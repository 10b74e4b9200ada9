package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

// SessionStore keeps one cart snapshot per tenant and cashier in Redis.
// Every write refreshes the TTL, so an abandoned cart expires on its
// own instead of lingering forever.
type SessionStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func cartKey(tenantID, cashierID string) string {
	return tenant.PrefixKey(tenantID, "pos:cart:"+cashierID)
}

// Load returns the cashier's current cart, or a fresh empty cart taxed
// at taxBps when no snapshot exists.
func (s *SessionStore) Load(ctx context.Context, tenantID, cashierID string, taxBps int) (*pricing.Cart, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("pos: session store not configured")
	}
	raw, err := s.Client.Get(ctx, cartKey(tenantID, cashierID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return pricing.NewCart(taxBps), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart session: %w", err)
	}
	var cart pricing.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		// A corrupt snapshot should not block the register.
		return pricing.NewCart(taxBps), nil
	}
	cart.Recalculate()
	return &cart, nil
}

// Save persists the cart snapshot and refreshes its TTL.
func (s *SessionStore) Save(ctx context.Context, tenantID, cashierID string, cart *pricing.Cart) error {
	if s == nil || s.Client == nil {
		return errors.New("pos: session store not configured")
	}
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart session: %w", err)
	}
	if err := s.Client.Set(ctx, cartKey(tenantID, cashierID), raw, s.TTL).Err(); err != nil {
		return fmt.Errorf("save cart session: %w", err)
	}
	return nil
}

// Clear removes the cashier's cart snapshot.
func (s *SessionStore) Clear(ctx context.Context, tenantID, cashierID string) error {
	if s == nil || s.Client == nil {
		return errors.New("pos: session store not configured")
	}
	if err := s.Client.Del(ctx, cartKey(tenantID, cashierID)).Err(); err != nil {
		return fmt.Errorf("clear cart session: %w", err)
	}
	return nil
}
