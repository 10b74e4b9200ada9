package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type fakeAggregator struct {
	daily     []DailyRow
	top       []TopProductRow
	dailyHits int
	topHits   int
}

func (f *fakeAggregator) DailySales(_ context.Context, _ string, _, _ time.Time) ([]DailyRow, error) {
	f.dailyHits++
	return f.daily, nil
}

func (f *fakeAggregator) TopProducts(_ context.Context, _ string, _, _ time.Time, _ int) ([]TopProductRow, error) {
	f.topHits++
	return f.top, nil
}

type memCache struct {
	entries map[string][]byte
}

func (m *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memCache) SetJSON(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[key] = raw
	return nil
}

func reportCtx() context.Context {
	return tenant.WithTenant(context.Background(), "toko-utama")
}

func fixedNow() time.Time {
	return time.Date(2025, 8, 12, 10, 0, 0, 0, time.UTC)
}

func TestParsePeriodDefaultsToLastSevenDays(t *testing.T) {
	svc := &Service{Now: fixedNow}

	p, err := svc.ParsePeriod("", "")
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 8, 13, 0, 0, 0, 0, time.UTC), p.To)
	require.Equal(t, time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC), p.From)
}

func TestParsePeriodValidation(t *testing.T) {
	svc := &Service{Now: fixedNow}

	_, err := svc.ParsePeriod("12-08-2025", "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, appErr.Message, "format tanggal")

	_, err = svc.ParsePeriod("2025-08-12", "2025-08-01")
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, appErr.Message, "tanggal akhir")

	_, err = svc.ParsePeriod("2025-01-01", "2025-08-12")
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, appErr.Message, "rentang laporan")
}

func TestParseTopLimit(t *testing.T) {
	n, err := ParseTopLimit("")
	require.NoError(t, err)
	require.Equal(t, 10, n)

	n, err = ParseTopLimit("500")
	require.NoError(t, err)
	require.Equal(t, 100, n)

	_, err = ParseTopLimit("abc")
	require.Error(t, err)
}

func TestDailySalesUsesCacheOnSecondCall(t *testing.T) {
	agg := &fakeAggregator{daily: []DailyRow{{
		Date:         time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC),
		Transactions: 3,
		Net:          108000,
	}}}
	svc := &Service{Store: agg, Cache: &memCache{}, Now: fixedNow}
	p, err := svc.ParsePeriod("2025-08-10", "2025-08-12")
	require.NoError(t, err)

	first, err := svc.DailySales(reportCtx(), p)
	require.NoError(t, err)
	second, err := svc.DailySales(reportCtx(), p)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, agg.dailyHits)
}

func TestTopProductsCacheKeyIncludesLimit(t *testing.T) {
	agg := &fakeAggregator{top: []TopProductRow{{ProductID: "p1", Name: "Kopi Susu", Qty: 12, Sales: 216000}}}
	svc := &Service{Store: agg, Cache: &memCache{}, Now: fixedNow}
	p, err := svc.ParsePeriod("2025-08-10", "2025-08-12")
	require.NoError(t, err)

	_, err = svc.TopProducts(reportCtx(), p, 5)
	require.NoError(t, err)
	_, err = svc.TopProducts(reportCtx(), p, 10)
	require.NoError(t, err)
	require.Equal(t, 2, agg.topHits)
}
