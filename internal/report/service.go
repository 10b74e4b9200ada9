package report

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type aggregator interface {
	DailySales(ctx context.Context, tenantID string, from, to time.Time) ([]DailyRow, error)
	TopProducts(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]TopProductRow, error)
}

type jsonCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}

// Period is the validated reporting window.
type Period struct {
	From time.Time
	To   time.Time
}

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
	maxRangeDays    = 92
)

// Service serves sales reports with a short-lived cache in front of
// the aggregate queries. Closed periods never change, so caching is
// safe; the current day simply lags by the cache TTL.
type Service struct {
	Store aggregator
	Cache jsonCache
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ParsePeriod reads from/to dates (YYYY-MM-DD) and defaults to the
// last 7 days. The range is half-open: to's day is included.
func (s *Service) ParsePeriod(fromStr, toStr string) (Period, error) {
	now := s.now().UTC()
	to := now.Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -7)

	if fromStr != "" {
		d, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return Period{}, common.NewAppError("VALIDATION", "format tanggal tidak valid, gunakan YYYY-MM-DD", http.StatusBadRequest, err)
		}
		from = d
	}
	if toStr != "" {
		d, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return Period{}, common.NewAppError("VALIDATION", "format tanggal tidak valid, gunakan YYYY-MM-DD", http.StatusBadRequest, err)
		}
		to = d.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return Period{}, common.NewAppError("VALIDATION", "tanggal akhir harus setelah tanggal awal", http.StatusBadRequest, nil)
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return Period{}, common.NewAppError("VALIDATION",
			fmt.Sprintf("rentang laporan maksimal %d hari", maxRangeDays), http.StatusBadRequest, nil)
	}
	return Period{From: from, To: to}, nil
}

// ParseTopLimit bounds the top-products limit.
func ParseTopLimit(raw string) (int, error) {
	if raw == "" {
		return defaultTopLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, common.NewAppError("VALIDATION", "limit harus bilangan positif", http.StatusBadRequest, err)
	}
	if n > maxTopLimit {
		n = maxTopLimit
	}
	return n, nil
}

// DailySales returns the per-day aggregates for the period.
func (s *Service) DailySales(ctx context.Context, p Period) ([]DailyRow, error) {
	tenantID, _ := tenant.FromContext(ctx)
	key := tenant.PrefixKey(tenantID, cacheKey("daily", p, 0))

	if s.Cache != nil {
		var cached []DailyRow
		if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	rows, err := s.Store.DailySales(ctx, tenantID, p.From, p.To)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, key, rows)
	}
	return rows, nil
}

// TopProducts returns the best sellers for the period.
func (s *Service) TopProducts(ctx context.Context, p Period, limit int) ([]TopProductRow, error) {
	tenantID, _ := tenant.FromContext(ctx)
	key := tenant.PrefixKey(tenantID, cacheKey("top", p, limit))

	if s.Cache != nil {
		var cached []TopProductRow
		if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}
	rows, err := s.Store.TopProducts(ctx, tenantID, p.From, p.To, limit)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, key, rows)
	}
	return rows, nil
}

func cacheKey(kind string, p Period, limit int) string {
	return fmt.Sprintf("report:%s:%s:%s:%d", kind, p.From.Format("20060102"), p.To.Format("20060102"), limit)
}
