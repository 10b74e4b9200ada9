package pricing

// Money represents a monetary value in whole Rupiah.
type Money = int64

// LineTotal computes a single line's total: quantity times unit price,
// minus the percentage discount (in basis points) and the fixed
// discount amount, floored at zero.
func LineTotal(qty int, unitPrice Money, discountBps int32, discountAmount Money) Money {
	if qty <= 0 || unitPrice < 0 {
		return 0
	}
	gross := Money(qty) * unitPrice
	off := (gross * Money(clampBps(discountBps))) / 10000
	if discountAmount > 0 {
		off += discountAmount
	}
	total := gross - off
	if total < 0 {
		return 0
	}
	return total
}

// DiscountOff resolves a cart-level discount against the subtotal,
// capped so the amount off never exceeds the subtotal.
func DiscountOff(subtotal Money, d *Discount) Money {
	if d == nil || subtotal <= 0 {
		return 0
	}
	var off Money
	switch d.Kind {
	case DiscountPercent:
		off = (subtotal * Money(clampBps(d.PercentBps))) / 10000
	case DiscountFixed:
		off = d.Amount
	}
	if off < 0 {
		return 0
	}
	if off > subtotal {
		return subtotal
	}
	return off
}

// Compute calculates cart totals from the lines, an optional cart
// discount, and the tax rate in basis points.
func Compute(lines []Line, discount *Discount, taxBps int) Totals {
	var subtotal Money
	for _, ln := range lines {
		subtotal += LineTotal(ln.Qty, ln.UnitPrice, ln.DiscountBps, ln.DiscountAmount)
	}
	off := DiscountOff(subtotal, discount)
	taxable := subtotal - off
	if taxable < 0 {
		taxable = 0
	}
	tax := (taxable * Money(taxBps)) / 10000
	total := taxable + tax
	if total < 0 {
		total = 0
	}
	return Totals{
		Subtotal: subtotal,
		Discount: off,
		Tax:      tax,
		Total:    total,
	}
}

// PercentToBps converts a human percentage (0-100, fractions allowed)
// into basis points, clamped to the valid range.
func PercentToBps(percent float64) int32 {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return 10000
	}
	return int32(percent*100 + 0.5)
}

func clampBps(bps int32) int32 {
	if bps < 0 {
		return 0
	}
	if bps > 10000 {
		return 10000
	}
	return bps
}
