package promo

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kasirkita/backend-kasir/internal/money"
	"github.com/kasirkita/backend-kasir/internal/pricing"
)

// Kind enumerates the supported promotion mechanics.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed_amount"
	KindBuyXGetY   Kind = "buy_x_get_y"
)

// StatusActive is the only status under which a promotion qualifies.
const StatusActive = "active"

// Promotion captures the runtime rule of one promotion as supplied by
// the promotion catalog.
type Promotion struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Kind        Kind          `json:"kind"`
	Value       pricing.Money `json:"value"`
	PercentBps  int32         `json:"percentBps"`
	BuyQty      int           `json:"buyQty"`
	GetQty      int           `json:"getQty"`
	MinPurchase pricing.Money `json:"minPurchase"`
	MaxDiscount pricing.Money `json:"maxDiscount"`
	StartsAt    time.Time     `json:"startsAt"`
	EndsAt      time.Time     `json:"endsAt"`
	Status      string        `json:"status"`
	Active      bool          `json:"active"`
}

// Result reports the outcome of best-promotion resolution. When no
// candidate qualifies, Promotion is nil and Reason explains the last
// disqualification in the cashier's language.
type Result struct {
	Promotion *Promotion    `json:"promotion,omitempty"`
	Discount  pricing.Money `json:"discount"`
	Reason    string        `json:"reason,omitempty"`
}

// Evaluate computes the discount this promotion yields for the given
// order total and item quantity. A zero discount comes with a
// human-readable reason instead of an error: disqualification is an
// ordinary outcome, not a failure.
func (p Promotion) Evaluate(now time.Time, orderTotal pricing.Money, qty int) (pricing.Money, string) {
	if !p.Active {
		return 0, "promo tidak aktif"
	}
	if p.Status != StatusActive {
		return 0, fmt.Sprintf("status promo %s", p.Status)
	}
	if !p.StartsAt.IsZero() && now.Before(p.StartsAt) {
		return 0, "promo belum dimulai"
	}
	if !p.EndsAt.IsZero() && now.After(p.EndsAt) {
		return 0, "promo sudah berakhir"
	}
	if orderTotal < p.MinPurchase {
		return 0, fmt.Sprintf("belum mencapai minimum pembelian %s", money.FormatRp(p.MinPurchase))
	}

	var discount pricing.Money
	switch p.Kind {
	case KindPercentage:
		if p.PercentBps <= 0 {
			return 0, "nilai persentase promo tidak valid"
		}
		discount = (orderTotal * pricing.Money(p.PercentBps)) / 10000
		if p.MaxDiscount > 0 && discount > p.MaxDiscount {
			discount = p.MaxDiscount
		}
	case KindFixed:
		discount = p.Value
	case KindBuyXGetY:
		if p.BuyQty <= 0 || p.GetQty <= 0 {
			return 0, "aturan beli-x-gratis-y tidak valid"
		}
		if qty < p.BuyQty {
			return 0, fmt.Sprintf("jumlah item kurang dari syarat beli %d", p.BuyQty)
		}
		freeUnits := pricing.Money((qty / p.BuyQty) * p.GetQty)
		unitValue := orderTotal / pricing.Money(qty)
		discount = freeUnits * unitValue
	default:
		return 0, "jenis promo tidak dikenal"
	}

	if discount <= 0 {
		return 0, "promo tidak memberikan potongan"
	}
	if discount > orderTotal {
		discount = orderTotal
	}
	return discount, ""
}

// ResolveBest iterates all candidates and selects the single promotion
// yielding the largest discount; ties keep the first-encountered
// candidate. Disqualified candidates never win, whatever their face
// value.
func ResolveBest(candidates []Promotion, now time.Time, orderTotal pricing.Money, qty int) Result {
	best := Result{Reason: "tidak ada promo yang berlaku"}
	for i := range candidates {
		discount, reason := candidates[i].Evaluate(now, orderTotal, qty)
		if discount <= 0 {
			if best.Promotion == nil && reason != "" {
				best.Reason = reason
			}
			continue
		}
		if best.Promotion == nil || discount > best.Discount {
			best = Result{Promotion: &candidates[i], Discount: discount}
		}
	}
	return best
}
