package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// ErrProductNotFound is returned when a lookup matches no product.
var ErrProductNotFound = errors.New("catalog: product not found")

// Product is a sellable item scoped to a tenant.
type Product struct {
	ID         string        `json:"id"`
	SKU        string        `json:"sku"`
	Barcode    string        `json:"barcode,omitempty"`
	Name       string        `json:"name"`
	Category   string        `json:"category,omitempty"`
	UnitPrice  pricing.Money `json:"unitPrice"`
	Stock      int           `json:"stock"`
	TrackStock bool          `json:"trackStock"`
	Active     bool          `json:"active"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// ListParams captures filters for the product listing.
type ListParams struct {
	Query    string
	Category string
	Page     int
	Limit    int
}

// Store persists products with raw SQL against the pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, sku, COALESCE(barcode, ''), name, COALESCE(category, ''), unit_price, stock, track_stock, active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Barcode, &p.Name, &p.Category, &p.UnitPrice, &p.Stock, &p.TrackStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// List returns active products matching the filters plus the total count.
func (s Store) List(ctx context.Context, tenantID string, params ListParams) ([]Product, int64, error) {
	where := `tenant_id = $1 AND active`
	args := []any{tenantID}
	if q := strings.TrimSpace(params.Query); q != "" {
		args = append(args, "%"+q+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR sku ILIKE $%d OR barcode ILIKE $%d)`, len(args), len(args), len(args))
	}
	if c := strings.TrimSpace(params.Category); c != "" {
		args = append(args, c)
		where += fmt.Sprintf(` AND category = $%d`, len(args))
	}

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	limit := params.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (params.Page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	rows, err := s.Pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM products WHERE %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// GetByID returns a single product by its identifier.
func (s Store) GetByID(ctx context.Context, tenantID, id string) (Product, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// GetByBarcode returns a product by barcode, the scanner fast path at the register.
func (s Store) GetByBarcode(ctx context.Context, tenantID, barcode string) (Product, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND barcode = $2 AND active`, tenantID, barcode)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// GetBySKU returns a product by SKU.
func (s Store) GetBySKU(ctx context.Context, tenantID, sku string) (Product, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id = $1 AND sku = $2`, tenantID, sku)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// Create inserts a product and returns it with generated fields populated.
func (s Store) Create(ctx context.Context, tenantID string, p Product) (Product, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO products (tenant_id, sku, barcode, name, category, unit_price, stock, track_stock, active)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9)
		RETURNING `+productColumns,
		tenantID, p.SKU, p.Barcode, p.Name, p.Category, p.UnitPrice, p.Stock, p.TrackStock, p.Active)
	return scanProduct(row)
}

// Update replaces mutable product fields.
func (s Store) Update(ctx context.Context, tenantID string, p Product) (Product, error) {
	row := s.Pool.QueryRow(ctx, `
		UPDATE products
		SET sku = $3,
			barcode = NULLIF($4, ''),
			name = $5,
			category = NULLIF($6, ''),
			unit_price = $7,
			stock = $8,
			track_stock = $9,
			active = $10,
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+productColumns,
		tenantID, p.ID, p.SKU, p.Barcode, p.Name, p.Category, p.UnitPrice, p.Stock, p.TrackStock, p.Active)
	updated, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return updated, err
}
