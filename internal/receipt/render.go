package receipt

import (
	"fmt"
	"strings"

	"github.com/kasirkita/backend-kasir/internal/money"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// Width is the character width of the thermal printer paper.
const Width = 32

// CompanyInfo is the header block printed on every receipt.
type CompanyInfo struct {
	Name    string
	Address string
	Phone   string
}

var divider = strings.Repeat("-", Width)

// Render produces the plain-text receipt for a completed transaction.
// The output is deterministic: the same transaction always renders to
// the same bytes.
func Render(t payment.Transaction, company CompanyInfo) string {
	var b strings.Builder

	writeCentered(&b, company.Name)
	writeCentered(&b, company.Address)
	writeCentered(&b, company.Phone)
	b.WriteString(divider + "\n")

	writeKV(&b, "No", t.OrderNo)
	writeKV(&b, "Kasir", t.CashierName)
	writeKV(&b, "Waktu", t.CreatedAt.Format("02-01-2006 15:04"))
	if t.RefundOf != nil {
		writeKV(&b, "Refund", t.RefundOf.String()[:8])
	}
	b.WriteString(divider + "\n")

	for _, line := range t.Items {
		b.WriteString(line.Name + "\n")
		qty := fmt.Sprintf("  %d x %s", line.Qty, money.FormatRp(line.UnitPrice))
		writeAmount(&b, qty, line.Total)
		if line.DiscountBps > 0 || line.DiscountAmount > 0 {
			writeAmount(&b, "  potongan", -lineDiscount(line))
		}
	}
	b.WriteString(divider + "\n")

	writeAmount(&b, "Subtotal", t.Totals.Subtotal)
	if t.Totals.Discount != 0 {
		label := "Diskon"
		if t.PromoName != "" {
			label = "Promo " + t.PromoName
		}
		writeAmount(&b, label, -t.Totals.Discount)
	}
	writeAmount(&b, "Pajak", t.Totals.Tax)
	writeAmount(&b, "TOTAL", t.Totals.Total)
	b.WriteString(divider + "\n")

	for _, p := range t.Payments {
		writeAmount(&b, tenderLabel(p.Method), p.Amount)
		if p.Method == payment.MethodCash && p.Change > 0 {
			writeAmount(&b, "Tunai diterima", p.Received)
			writeAmount(&b, "Kembalian", p.Change)
		}
	}
	b.WriteString(divider + "\n")
	writeCentered(&b, "Terima kasih")
	writeCentered(&b, "atas kunjungan Anda")
	return b.String()
}

func lineDiscount(line pricing.Line) pricing.Money {
	gross := pricing.Money(line.Qty) * line.UnitPrice
	return gross - line.Total
}

func tenderLabel(m payment.Method) string {
	switch m {
	case payment.MethodCash:
		return "Tunai"
	case payment.MethodCard:
		return "Kartu"
	case payment.MethodTransfer:
		return "Transfer"
	case payment.MethodEwallet:
		return "E-Wallet"
	case payment.MethodCredit:
		return "Kredit"
	default:
		return string(m)
	}
}

func writeCentered(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	if len(s) >= Width {
		b.WriteString(s + "\n")
		return
	}
	pad := (Width - len(s)) / 2
	b.WriteString(strings.Repeat(" ", pad) + s + "\n")
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString(fmt.Sprintf("%-6s: %s\n", key, value))
}

func writeAmount(b *strings.Builder, label string, v pricing.Money) {
	amount := money.FormatRp(v)
	gap := Width - len(label) - len(amount)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(label + strings.Repeat(" ", gap) + amount + "\n")
}
