package promo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists promotions with raw SQL against the pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

const promotionColumns = `id, name, kind, percent_bps, value, buy_qty, get_qty, min_purchase, max_discount, starts_at, ends_at, status`

func scanPromotion(row pgx.Row) (Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.PercentBps, &p.Value, &p.BuyQty, &p.GetQty,
		&p.MinPurchase, &p.MaxDiscount, &p.StartsAt, &p.EndsAt, &p.Status)
	p.Active = p.Status == StatusActive
	return p, err
}

// ListActive returns promotions whose window covers the given instant.
func (s Store) ListActive(ctx context.Context, tenantID string, now time.Time) ([]Promotion, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE tenant_id = $1 AND status = 'active' AND starts_at <= $2 AND ends_at >= $2
		ORDER BY created_at ASC
	`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	defer rows.Close()

	var items []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Create inserts a promotion and returns it with generated fields populated.
func (s Store) Create(ctx context.Context, tenantID string, p Promotion) (Promotion, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO promotions (tenant_id, name, kind, percent_bps, value, buy_qty, get_qty, min_purchase, max_discount, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'active')
		RETURNING `+promotionColumns,
		tenantID, p.Name, p.Kind, p.PercentBps, p.Value, p.BuyQty, p.GetQty, p.MinPurchase, p.MaxDiscount, p.StartsAt, p.EndsAt)
	return scanPromotion(row)
}

// Deactivate retires a promotion so it no longer qualifies.
func (s Store) Deactivate(ctx context.Context, tenantID, id string) error {
	ct, err := s.Pool.Exec(ctx, `
		UPDATE promotions SET status = 'inactive', updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return fmt.Errorf("deactivate promotion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
