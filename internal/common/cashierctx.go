package common

import "context"

type ctxKey string

const (
	cashierIDKey   ctxKey = "auth/cashier-id"
	cashierNameKey ctxKey = "auth/cashier-name"
)

// Cashier identifies the operator behind the current request.
type Cashier struct {
	ID   string
	Name string
}

// WithCashier stores the authenticated cashier on the provided context.
func WithCashier(ctx context.Context, c Cashier) context.Context {
	ctx = context.WithValue(ctx, cashierIDKey, c.ID)
	return context.WithValue(ctx, cashierNameKey, c.Name)
}

// CashierFromContext extracts the cashier from the context if present.
func CashierFromContext(ctx context.Context) (Cashier, bool) {
	id, ok := ctx.Value(cashierIDKey).(string)
	if !ok || id == "" {
		return Cashier{}, false
	}
	name, _ := ctx.Value(cashierNameKey).(string)
	return Cashier{ID: id, Name: name}, true
}
