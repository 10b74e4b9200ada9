package payment

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/money"
	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/shift"
)

// Sentinel errors for payment reconciliation failures. Handlers match
// on these with errors.Is; the wrapping AppError carries the localized
// message and HTTP status.
var (
	ErrInsufficientPayment = errors.New("payment: insufficient payment")
	ErrMissingReference    = errors.New("payment: missing reference for non-cash payment")
	ErrInvalidAmount       = errors.New("payment: amount must not be negative")
	ErrEmptyCart           = errors.New("payment: cart is empty")
	ErrNoPayments          = errors.New("payment: at least one payment is required")
)

// Method is the tender instrument used to pay.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
	MethodEwallet  Method = "ewallet"
	MethodCredit   Method = "credit"
)

func validMethod(m Method) bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodEwallet, MethodCredit:
		return true
	default:
		return false
	}
}

// Payment is one tendered amount. Cash payments carry the received
// amount and a computed change; non-cash methods require a reference.
type Payment struct {
	Method    Method        `json:"method"`
	Amount    pricing.Money `json:"amount"`
	Reference string        `json:"reference,omitempty"`
	Received  pricing.Money `json:"received,omitempty"`
	Change    pricing.Money `json:"change,omitempty"`
}

// Transaction is the immutable snapshot produced by a successful
// payment confirmation. It is never mutated after creation; refunds are
// separate negative-valued transactions linked through RefundOf.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	OrderNo     string            `json:"orderNo,omitempty"`
	TenantID    string            `json:"tenantId"`
	ShiftID     uuid.UUID         `json:"shiftId"`
	CashierID   string            `json:"cashierId"`
	CashierName string            `json:"cashierName"`
	Items       []pricing.Line    `json:"items"`
	Discount    *pricing.Discount `json:"discount,omitempty"`
	PromoName   string            `json:"promoName,omitempty"`
	Note        string            `json:"note,omitempty"`
	Totals      pricing.Totals    `json:"totals"`
	Payments    []Payment         `json:"payments"`
	CustomerID  *uuid.UUID        `json:"customerId,omitempty"`
	RefundOf    *uuid.UUID        `json:"refundOf,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// CashPortion sums the cash-tendered part of the transaction, which is
// what lands in the drawer.
func (t Transaction) CashPortion() pricing.Money {
	var cash pricing.Money
	for _, p := range t.Payments {
		if p.Method == MethodCash {
			cash += p.Amount
		}
	}
	return cash
}

// Change computes cash change: what was received minus what is due,
// never negative. Defined for a single cash tender only.
func Change(received, due pricing.Money) pricing.Money {
	change := received - due
	if change < 0 {
		return 0
	}
	return change
}

// Validate checks the tendered payments against the amount due. Every
// payment must carry a non-negative amount, non-cash methods need a
// reference, and the sum must cover the total; a shortfall is an error,
// never silently accepted.
func Validate(payments []Payment, due pricing.Money) error {
	if len(payments) == 0 {
		return common.NewAppError("VALIDATION", "metode pembayaran belum dipilih", http.StatusBadRequest, ErrNoPayments)
	}
	var tendered pricing.Money
	for i, p := range payments {
		if !validMethod(p.Method) {
			return common.NewAppError("VALIDATION", fmt.Sprintf("metode pembayaran tidak dikenal: %s", p.Method), http.StatusBadRequest, nil)
		}
		if p.Amount < 0 {
			return common.NewAppError("VALIDATION", "jumlah pembayaran tidak boleh negatif", http.StatusBadRequest, ErrInvalidAmount)
		}
		if p.Method != MethodCash && strings.TrimSpace(p.Reference) == "" {
			return common.NewAppError("VALIDATION",
				fmt.Sprintf("nomor referensi wajib diisi untuk pembayaran %s", p.Method),
				http.StatusBadRequest,
				fmt.Errorf("payment %d: %w", i, ErrMissingReference))
		}
		tendered += p.Amount
	}
	if tendered < due {
		short := due - tendered
		return common.NewAppError("INSUFFICIENT_PAYMENT",
			fmt.Sprintf("pembayaran kurang: masih kurang %s", money.FormatRp(short)),
			http.StatusUnprocessableEntity,
			fmt.Errorf("short %d: %w", short, ErrInsufficientPayment))
	}
	return nil
}

// EmptyCartError returns the user-facing error for confirming an empty cart.
func EmptyCartError() *common.AppError {
	return common.NewAppError("EMPTY_CART", "keranjang masih kosong", http.StatusUnprocessableEntity, ErrEmptyCart)
}

// Confirm reconciles the tendered payments against the cart and
// produces the immutable transaction snapshot. Preconditions: an open
// shift, a non-empty cart, and payments that pass Validate. On any
// failure the cart and shift are untouched; persistence and ledger
// recording are signalled to the caller, not performed here.
func Confirm(cart *pricing.Cart, payments []Payment, sh *shift.Shift, now time.Time) (Transaction, error) {
	if sh == nil || sh.Status != shift.StatusOpen {
		return Transaction{}, shift.NoActiveShiftError()
	}
	if cart == nil || cart.Empty() {
		return Transaction{}, EmptyCartError()
	}
	cart.Recalculate()
	due := cart.Totals.Total
	if err := Validate(payments, due); err != nil {
		return Transaction{}, err
	}

	settled := make([]Payment, len(payments))
	copy(settled, payments)
	if len(settled) == 1 && settled[0].Method == MethodCash {
		p := &settled[0]
		if p.Received < p.Amount {
			p.Received = p.Amount
		}
		p.Change = Change(p.Received, due)
		// the amount applied to the sale is what is due; the surplus
		// goes back as change and never enters the drawer
		p.Amount = due
	}

	items := make([]pricing.Line, len(cart.Lines))
	copy(items, cart.Lines)

	tx := Transaction{
		ID:          uuid.New(),
		TenantID:    sh.TenantID,
		ShiftID:     sh.ID,
		CashierID:   sh.CashierID,
		CashierName: sh.CashierName,
		Items:       items,
		Totals:      cart.Totals,
		Payments:    settled,
		CustomerID:  cart.CustomerID,
		CreatedAt:   now,
	}
	if cart.Discount != nil {
		d := *cart.Discount
		tx.Discount = &d
	}
	return tx, nil
}
