package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type lister interface {
	ListActive(ctx context.Context, tenantID string, now time.Time) ([]Promotion, error)
	Create(ctx context.Context, tenantID string, p Promotion) (Promotion, error)
	Deactivate(ctx context.Context, tenantID, id string) error
}

type jsonCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service resolves the best promotion for a cart, backed by the
// promotion store with a short-lived cache of the active set.
type Service struct {
	Store lister
	Cache jsonCache
	Now   func() time.Time
}

const activeCacheSuffix = "promo:active"

// Active returns the currently qualifying promotions for the tenant.
func (s *Service) Active(ctx context.Context) ([]Promotion, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("promo service not configured")
	}
	tenantID, _ := tenant.FromContext(ctx)
	key := tenant.PrefixKey(tenantID, activeCacheSuffix)

	if s.Cache != nil {
		var cached []Promotion
		if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	items, err := s.Store.ListActive(ctx, tenantID, s.now())
	if err != nil {
		return nil, fmt.Errorf("load active promotions: %w", err)
	}
	if items == nil {
		items = []Promotion{}
	}
	if s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, key, items)
	}
	return items, nil
}

// Resolve picks the best promotion for the given order total and item count.
func (s *Service) Resolve(ctx context.Context, orderTotal pricing.Money, qty int) (Result, error) {
	candidates, err := s.Active(ctx)
	if err != nil {
		return Result{}, err
	}
	return ResolveBest(candidates, s.now(), orderTotal, qty), nil
}

// Create registers a new promotion and busts the active-set cache.
func (s *Service) Create(ctx context.Context, p Promotion) (Promotion, error) {
	if s == nil || s.Store == nil {
		return Promotion{}, errors.New("promo service not configured")
	}
	tenantID, _ := tenant.FromContext(ctx)
	created, err := s.Store.Create(ctx, tenantID, p)
	if err != nil {
		return Promotion{}, fmt.Errorf("create promotion: %w", err)
	}
	s.invalidate(ctx, tenantID)
	return created, nil
}

// Deactivate retires a promotion and busts the active-set cache.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if s == nil || s.Store == nil {
		return errors.New("promo service not configured")
	}
	tenantID, _ := tenant.FromContext(ctx)
	if err := s.Store.Deactivate(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, tenantID string) {
	if s.Cache != nil {
		_ = s.Cache.Invalidate(ctx, tenant.PrefixKey(tenantID, activeCacheSuffix))
	}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
