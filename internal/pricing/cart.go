package pricing

import (
	"errors"

	"github.com/google/uuid"
)

// ErrLineNotFound indicates the referenced line item does not exist.
var ErrLineNotFound = errors.New("pricing: line item not found")

// ErrInvalidQty is returned when a quantity is not a positive integer.
var ErrInvalidQty = errors.New("pricing: quantity must be positive")

// ErrInvalidDiscount is returned when a discount payload is malformed.
var ErrInvalidDiscount = errors.New("pricing: invalid discount")

// DiscountKind tags the two cart discount variants.
type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// Discount applies either a percentage (basis points) or a fixed amount
// to the cart subtotal or to a single line.
type Discount struct {
	Kind        DiscountKind `json:"kind"`
	PercentBps  int32        `json:"percentBps,omitempty"`
	Amount      Money        `json:"amount,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Valid reports whether the discount is well formed.
func (d Discount) Valid() bool {
	switch d.Kind {
	case DiscountPercent:
		return d.PercentBps >= 0 && d.PercentBps <= 10000
	case DiscountFixed:
		return d.Amount >= 0
	default:
		return false
	}
}

// Line is one product entry in a cart. UnitPrice is snapshotted when the
// product is added; later catalog price changes do not affect it.
type Line struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	Qty            int       `json:"qty"`
	UnitPrice      Money     `json:"unitPrice"`
	DiscountBps    int32     `json:"discountBps"`
	DiscountAmount Money     `json:"discountAmount"`
	Total          Money     `json:"total"`
}

// Totals aggregates the computed pricing components of a cart.
type Totals struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Tax      Money `json:"tax"`
	Total    Money `json:"total"`
}

// Cart holds the ordered line items of one cashier session together
// with an optional cart-level discount. All mutating operations
// recalculate totals, so Totals is never stale.
type Cart struct {
	Lines      []Line     `json:"lines"`
	Discount   *Discount  `json:"discount,omitempty"`
	CustomerID *uuid.UUID `json:"customerId,omitempty"`
	TaxBps     int        `json:"taxBps"`
	Totals     Totals     `json:"totals"`
}

// NewCart creates an empty cart taxed at the supplied rate. The rate is
// configuration owned by the surrounding application, never a constant.
func NewCart(taxBps int) *Cart {
	if taxBps < 0 {
		taxBps = 0
	}
	return &Cart{TaxBps: taxBps}
}

// AddItem appends a new line at the product's current unit price, or
// increments the quantity when the product is already in the cart.
func (c *Cart) AddItem(productID uuid.UUID, name, sku string, unitPrice Money, qty int) (Line, error) {
	if qty <= 0 {
		return Line{}, ErrInvalidQty
	}
	if unitPrice < 0 {
		unitPrice = 0
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Qty += qty
			c.recalcLine(i)
			c.Recalculate()
			return c.Lines[i], nil
		}
	}
	line := Line{
		ID:        uuid.New(),
		ProductID: productID,
		Name:      name,
		SKU:       sku,
		Qty:       qty,
		UnitPrice: unitPrice,
	}
	line.Total = LineTotal(line.Qty, line.UnitPrice, line.DiscountBps, line.DiscountAmount)
	c.Lines = append(c.Lines, line)
	c.Recalculate()
	return line, nil
}

// UpdateQty sets a line's quantity. A quantity of zero or less removes
// the line.
func (c *Cart) UpdateQty(lineID uuid.UUID, qty int) error {
	i := c.indexOf(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	if qty <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		c.Recalculate()
		return nil
	}
	c.Lines[i].Qty = qty
	c.recalcLine(i)
	c.Recalculate()
	return nil
}

// SetLineDiscount applies a per-line discount; the percentage is
// clamped to [0,100] and the fixed amount floored at zero.
func (c *Cart) SetLineDiscount(lineID uuid.UUID, percentBps int32, amount Money) error {
	i := c.indexOf(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines[i].DiscountBps = clampBps(percentBps)
	if amount < 0 {
		amount = 0
	}
	c.Lines[i].DiscountAmount = amount
	c.recalcLine(i)
	c.Recalculate()
	return nil
}

// RemoveItem deletes a line from the cart.
func (c *Cart) RemoveItem(lineID uuid.UUID) error {
	i := c.indexOf(lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	c.Recalculate()
	return nil
}

// ApplyDiscount attaches a single cart-level discount, replacing any
// previous one.
func (c *Cart) ApplyDiscount(d Discount) error {
	if !d.Valid() {
		return ErrInvalidDiscount
	}
	c.Discount = &d
	c.Recalculate()
	return nil
}

// RemoveDiscount clears the cart-level discount.
func (c *Cart) RemoveDiscount() {
	c.Discount = nil
	c.Recalculate()
}

// Reset empties the cart back to its initial state, keeping the tax
// rate it was created with.
func (c *Cart) Reset() {
	c.Lines = nil
	c.Discount = nil
	c.CustomerID = nil
	c.Totals = Totals{}
}

// Recalculate recomputes subtotal, discount, tax and total from the
// current lines. Calling it twice without mutation yields identical
// totals.
func (c *Cart) Recalculate() {
	for i := range c.Lines {
		c.recalcLine(i)
	}
	c.Totals = Compute(c.Lines, c.Discount, c.TaxBps)
}

// Empty reports whether the cart has no line items.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) recalcLine(i int) {
	ln := &c.Lines[i]
	ln.Total = LineTotal(ln.Qty, ln.UnitPrice, ln.DiscountBps, ln.DiscountAmount)
}

func (c *Cart) indexOf(lineID uuid.UUID) int {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return i
		}
	}
	return -1
}
