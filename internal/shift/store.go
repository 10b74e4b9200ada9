package shift

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirkita/backend-kasir/internal/common"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so ledger
// updates can join the checkout transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists shifts with raw SQL against the pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

const shiftColumns = `id, tenant_id, cashier_id, cashier_name, status, starting_cash,
	cash_sales, non_cash_sales, cash_count, non_cash_count,
	expected_cash, actual_cash, variance, notes, opened_at, closed_at`

func scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.TenantID, &s.CashierID, &s.CashierName, &s.Status, &s.StartingCash,
		&s.CashSales, &s.NonCashSales, &s.CashCount, &s.NonCashCount,
		&s.ExpectedCash, &s.ActualCash, &s.Variance, &s.Notes, &s.StartedAt, &s.EndedAt)
	if err != nil {
		return nil, err
	}
	s.TotalSales = s.CashSales + s.NonCashSales
	s.TotalTransactions = s.CashCount + s.NonCashCount
	return &s, nil
}

// Insert persists a freshly opened shift. The partial unique index on
// open shifts turns a double open into AlreadyOpenError.
func (st Store) Insert(ctx context.Context, s *Shift) error {
	_, err := st.Pool.Exec(ctx, `
		INSERT INTO shifts (id, tenant_id, cashier_id, cashier_name, status, starting_cash, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.TenantID, s.CashierID, s.CashierName, s.Status, s.StartingCash, s.StartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return AlreadyOpenError()
		}
		return fmt.Errorf("insert shift: %w", err)
	}
	return nil
}

// CurrentForCashier loads the cashier's open shift.
func (st Store) CurrentForCashier(ctx context.Context, tenantID, cashierID string) (*Shift, error) {
	row := st.Pool.QueryRow(ctx, `
		SELECT `+shiftColumns+` FROM shifts
		WHERE tenant_id = $1 AND cashier_id = $2 AND status = 'open'
	`, tenantID, cashierID)
	s, err := scanShift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NoActiveShiftError()
	}
	return s, err
}

// GetByID loads a shift regardless of status.
func (st Store) GetByID(ctx context.Context, tenantID, id string) (*Shift, error) {
	row := st.Pool.QueryRow(ctx, `
		SELECT `+shiftColumns+` FROM shifts WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	s, err := scanShift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "shift tidak ditemukan", http.StatusNotFound, err)
	}
	return s, err
}

// RecordEntry folds a completed transaction into the open shift's
// running totals. Runs against the caller's Querier so checkout can
// keep it inside its own database transaction. Recording against a
// closed shift affects no rows and is an error.
func (st Store) RecordEntry(ctx context.Context, q Querier, shiftID string, e Entry) error {
	cashInc, nonCashInc := 0, 1
	if e.CashPortion == e.Total {
		cashInc, nonCashInc = 1, 0
	}
	ct, err := q.Exec(ctx, `
		UPDATE shifts
		SET cash_sales = cash_sales + $2,
			non_cash_sales = non_cash_sales + $3,
			cash_count = cash_count + $4,
			non_cash_count = non_cash_count + $5
		WHERE id = $1 AND status = 'open'
	`, shiftID, e.CashPortion, e.Total-e.CashPortion, cashInc, nonCashInc)
	if err != nil {
		return fmt.Errorf("record shift entry: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return AlreadyClosedError()
	}
	return nil
}

// CloseShift transitions the row to closed. The expectation and
// variance are computed inside the UPDATE from the row's own
// cash_sales, so a checkout committing between the handler's read and
// the close still lands in the reconciliation. The returned state is
// copied back into s.
func (st Store) CloseShift(ctx context.Context, s *Shift) error {
	err := st.Pool.QueryRow(ctx, `
		UPDATE shifts
		SET status = $2,
			actual_cash = $3,
			expected_cash = starting_cash + cash_sales,
			variance = $3 - (starting_cash + cash_sales),
			notes = $4,
			closed_at = $5
		WHERE id = $1 AND status = 'open'
		RETURNING cash_sales, non_cash_sales, cash_count, non_cash_count, expected_cash, variance
	`, s.ID, s.Status, s.ActualCash, s.Notes, s.EndedAt).Scan(
		&s.CashSales, &s.NonCashSales, &s.CashCount, &s.NonCashCount, &s.ExpectedCash, &s.Variance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AlreadyClosedError()
		}
		return fmt.Errorf("close shift: %w", err)
	}
	s.TotalSales = s.CashSales + s.NonCashSales
	s.TotalTransactions = s.CashCount + s.NonCashCount
	return nil
}
