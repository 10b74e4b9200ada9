package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// DailyRow is one calendar day of aggregated sales. Refund rows in the
// ledger carry negative totals, so the sums are already net.
type DailyRow struct {
	Date         time.Time     `json:"date"`
	Transactions int64         `json:"transactions"`
	Gross        pricing.Money `json:"gross"`
	Discount     pricing.Money `json:"discount"`
	Tax          pricing.Money `json:"tax"`
	Net          pricing.Money `json:"net"`
}

// TopProductRow ranks a product by quantity sold in the period.
type TopProductRow struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Qty       int64         `json:"qty"`
	Sales     pricing.Money `json:"sales"`
}

// Store aggregates directly over the transaction tables.
type Store struct {
	Pool *pgxpool.Pool
}

const dailySalesQuery = `
	SELECT date_trunc('day', created_at) AS day,
		COUNT(*),
		COALESCE(SUM(subtotal), 0),
		COALESCE(SUM(discount), 0),
		COALESCE(SUM(tax), 0),
		COALESCE(SUM(total), 0)
	FROM transactions
	WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
	GROUP BY day
	ORDER BY day
`

const topProductsQuery = `
	SELECT i.product_id, i.name,
		COALESCE(SUM(i.qty), 0),
		COALESCE(SUM(i.line_total), 0)
	FROM transaction_items i
	JOIN transactions t ON t.id = i.transaction_id
	WHERE t.tenant_id = $1 AND t.created_at >= $2 AND t.created_at < $3
	GROUP BY i.product_id, i.name
	HAVING COALESCE(SUM(i.qty), 0) > 0
	ORDER BY SUM(i.qty) DESC, i.name
	LIMIT $4
`

// DailySales returns per-day aggregates for the half-open range [from, to).
func (s Store) DailySales(ctx context.Context, tenantID string, from, to time.Time) ([]DailyRow, error) {
	rows, err := s.Pool.Query(ctx, dailySalesQuery, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily sales: %w", err)
	}
	defer rows.Close()

	out := []DailyRow{}
	for rows.Next() {
		var r DailyRow
		if err := rows.Scan(&r.Date, &r.Transactions, &r.Gross, &r.Discount, &r.Tax, &r.Net); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopProducts ranks products by net quantity sold in [from, to).
func (s Store) TopProducts(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]TopProductRow, error) {
	rows, err := s.Pool.Query(ctx, topProductsQuery, tenantID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer rows.Close()

	out := []TopProductRow{}
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductID, &r.Name, &r.Qty, &r.Sales); err != nil {
			return nil, fmt.Errorf("scan top products: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
