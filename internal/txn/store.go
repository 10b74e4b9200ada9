package txn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/shift"
)

// ErrTransactionNotFound is returned when a lookup matches no transaction.
var ErrTransactionNotFound = errors.New("txn: transaction not found")

// ErrAlreadyRefunded is returned when a transaction already has a linked refund.
var ErrAlreadyRefunded = errors.New("txn: transaction already refunded")

// ListParams captures filters for the transaction listing.
type ListParams struct {
	ShiftID string
	From    time.Time
	To      time.Time
	Page    int
	Limit   int
}

// Store persists transaction snapshots. Save is all-or-nothing: the
// header, its items and payments, stock decrements, and the shift
// ledger entry commit in one database transaction.
type Store struct {
	Pool   *pgxpool.Pool
	Shifts shift.Store
}

// Save assigns the order number and persists the snapshot atomically.
// The returned transaction carries the assigned OrderNo.
func (s Store) Save(ctx context.Context, t payment.Transaction) (payment.Transaction, error) {
	dbtx, err := s.Pool.Begin(ctx)
	if err != nil {
		return payment.Transaction{}, fmt.Errorf("begin save transaction: %w", err)
	}
	defer dbtx.Rollback(ctx)

	t.OrderNo, err = s.nextOrderNo(ctx, dbtx, t.TenantID, t.CreatedAt)
	if err != nil {
		return payment.Transaction{}, err
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO transactions (id, tenant_id, order_no, shift_id, cashier_id, cashier_name, customer_id,
			subtotal, discount, tax, total, promo_name, note, refund_of, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, t.ID, t.TenantID, t.OrderNo, t.ShiftID, t.CashierID, t.CashierName, t.CustomerID,
		t.Totals.Subtotal, t.Totals.Discount, t.Totals.Tax, t.Totals.Total, t.PromoName, t.Note, t.RefundOf, t.CreatedAt)
	if err != nil {
		return payment.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	for _, line := range t.Items {
		_, err = dbtx.Exec(ctx, `
			INSERT INTO transaction_items (id, transaction_id, product_id, name, sku, qty, unit_price, discount_bps, discount_amount, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, line.ID, t.ID, line.ProductID, line.Name, line.SKU, line.Qty, line.UnitPrice, line.DiscountBps, line.DiscountAmount, line.Total)
		if err != nil {
			return payment.Transaction{}, fmt.Errorf("insert transaction item: %w", err)
		}
		// Refund lines carry negative qty, which restores stock here.
		_, err = dbtx.Exec(ctx, `
			UPDATE products SET stock = stock - $3, updated_at = now()
			WHERE tenant_id = $1 AND id = $2 AND track_stock
		`, t.TenantID, line.ProductID, line.Qty)
		if err != nil {
			return payment.Transaction{}, fmt.Errorf("adjust stock: %w", err)
		}
	}

	for _, p := range t.Payments {
		_, err = dbtx.Exec(ctx, `
			INSERT INTO transaction_payments (transaction_id, method, amount, reference, received, change)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, t.ID, p.Method, p.Amount, p.Reference, p.Received, p.Change)
		if err != nil {
			return payment.Transaction{}, fmt.Errorf("insert transaction payment: %w", err)
		}
	}

	entry := shift.Entry{Total: t.Totals.Total, CashPortion: t.CashPortion()}
	if err := s.Shifts.RecordEntry(ctx, dbtx, t.ShiftID.String(), entry); err != nil {
		return payment.Transaction{}, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return payment.Transaction{}, fmt.Errorf("commit save transaction: %w", err)
	}
	return t, nil
}

// nextOrderNo assigns a human-readable per-tenant daily sequence,
// e.g. TRX-20250310-000042.
func (s Store) nextOrderNo(ctx context.Context, q shift.Querier, tenantID string, at time.Time) (string, error) {
	day := at.Format("20060102")
	var count int64
	err := q.QueryRow(ctx, `
		SELECT count(*) FROM transactions
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
	`, tenantID, at.Truncate(24*time.Hour), at.Truncate(24*time.Hour).Add(24*time.Hour)).Scan(&count)
	if err != nil {
		return "", fmt.Errorf("count daily transactions: %w", err)
	}
	return fmt.Sprintf("TRX-%s-%06d", day, count+1), nil
}

// GetByID loads the full snapshot including items and payments.
func (s Store) GetByID(ctx context.Context, tenantID, id string) (payment.Transaction, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, tenant_id, order_no, shift_id, cashier_id, cashier_name, customer_id,
			subtotal, discount, tax, total, promo_name, note, refund_of, created_at
		FROM transactions WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.Transaction{}, ErrTransactionNotFound
		}
		return payment.Transaction{}, err
	}
	if err := s.loadDetails(ctx, &t); err != nil {
		return payment.Transaction{}, err
	}
	return t, nil
}

// List returns transaction headers for the tenant, newest first.
func (s Store) List(ctx context.Context, tenantID string, params ListParams) ([]payment.Transaction, int64, error) {
	where := `tenant_id = $1`
	args := []any{tenantID}
	if params.ShiftID != "" {
		args = append(args, params.ShiftID)
		where += fmt.Sprintf(` AND shift_id = $%d`, len(args))
	}
	if !params.From.IsZero() {
		args = append(args, params.From)
		where += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !params.To.IsZero() {
		args = append(args, params.To)
		where += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
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
	rows, err := s.Pool.Query(ctx, fmt.Sprintf(`
		SELECT id, tenant_id, order_no, shift_id, cashier_id, cashier_name, customer_id,
			subtotal, discount, tax, total, promo_name, note, refund_of, created_at
		FROM transactions WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var items []payment.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// RefundFor checks whether the given transaction already has a refund.
func (s Store) RefundFor(ctx context.Context, tenantID, id string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM transactions WHERE tenant_id = $1 AND refund_of = $2)
	`, tenantID, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check refund: %w", err)
	}
	return exists, nil
}

func (s Store) loadDetails(ctx context.Context, t *payment.Transaction) error {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, product_id, name, sku, qty, unit_price, discount_bps, discount_amount, line_total
		FROM transaction_items WHERE transaction_id = $1 ORDER BY name ASC
	`, t.ID)
	if err != nil {
		return fmt.Errorf("load transaction items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line pricing.Line
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Name, &line.SKU, &line.Qty,
			&line.UnitPrice, &line.DiscountBps, &line.DiscountAmount, &line.Total); err != nil {
			return err
		}
		t.Items = append(t.Items, line)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	prows, err := s.Pool.Query(ctx, `
		SELECT method, amount, reference, received, change
		FROM transaction_payments WHERE transaction_id = $1
	`, t.ID)
	if err != nil {
		return fmt.Errorf("load transaction payments: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var p payment.Payment
		if err := prows.Scan(&p.Method, &p.Amount, &p.Reference, &p.Received, &p.Change); err != nil {
			return err
		}
		t.Payments = append(t.Payments, p)
	}
	return prows.Err()
}

func scanTransaction(row pgx.Row) (payment.Transaction, error) {
	var t payment.Transaction
	err := row.Scan(&t.ID, &t.TenantID, &t.OrderNo, &t.ShiftID, &t.CashierID, &t.CashierName, &t.CustomerID,
		&t.Totals.Subtotal, &t.Totals.Discount, &t.Totals.Tax, &t.Totals.Total, &t.PromoName, &t.Note, &t.RefundOf, &t.CreatedAt)
	return t, err
}

// Refund builds and persists the negative mirror of a completed sale.
// A transaction can be refunded at most once, and refunds cannot be
// refunded again. The refund is recorded into the refunding cashier's
// current open shift, not the shift of the original sale, which may
// have closed long ago.
func (s Store) Refund(ctx context.Context, tenantID, id, reason string, by common.Cashier, now time.Time) (payment.Transaction, error) {
	original, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return payment.Transaction{}, common.NewAppError("NOT_FOUND", "transaksi tidak ditemukan", http.StatusNotFound, err)
		}
		return payment.Transaction{}, err
	}
	if original.RefundOf != nil {
		return payment.Transaction{}, common.NewAppError("VALIDATION", "transaksi refund tidak dapat direfund lagi", http.StatusUnprocessableEntity, ErrAlreadyRefunded)
	}
	refunded, err := s.RefundFor(ctx, tenantID, id)
	if err != nil {
		return payment.Transaction{}, err
	}
	if refunded {
		return payment.Transaction{}, common.NewAppError("ALREADY_REFUNDED", "transaksi sudah pernah direfund", http.StatusConflict, ErrAlreadyRefunded)
	}
	current, err := s.Shifts.CurrentForCashier(ctx, tenantID, by.ID)
	if err != nil {
		return payment.Transaction{}, err
	}

	refund := payment.Transaction{
		ID:          uuid.New(),
		TenantID:    original.TenantID,
		ShiftID:     current.ID,
		CashierID:   by.ID,
		CashierName: by.Name,
		CustomerID:  original.CustomerID,
		Note:        strings.TrimSpace(reason),
		RefundOf:    &original.ID,
		CreatedAt:   now,
	}
	refund.Totals = pricing.Totals{
		Subtotal: -original.Totals.Subtotal,
		Discount: -original.Totals.Discount,
		Tax:      -original.Totals.Tax,
		Total:    -original.Totals.Total,
	}
	refund.Items = make([]pricing.Line, len(original.Items))
	for i, line := range original.Items {
		line.ID = uuid.New()
		line.Qty = -line.Qty
		line.Total = -line.Total
		refund.Items[i] = line
	}
	refund.Payments = make([]payment.Payment, len(original.Payments))
	for i, p := range original.Payments {
		refund.Payments[i] = payment.Payment{Method: p.Method, Amount: -p.Amount, Reference: p.Reference}
	}
	saved, err := s.Save(ctx, refund)
	if err != nil {
		// unique index on refund_of catches a concurrent double refund
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return payment.Transaction{}, common.NewAppError("ALREADY_REFUNDED", "transaksi sudah pernah direfund", http.StatusConflict, ErrAlreadyRefunded)
		}
		return payment.Transaction{}, err
	}
	return saved, nil
}
