package pos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kasirkita/backend-kasir/internal/catalog"
	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/obs"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/promo"
	"github.com/kasirkita/backend-kasir/internal/shift"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type sessionProvider interface {
	Load(ctx context.Context, tenantID, cashierID string, taxBps int) (*pricing.Cart, error)
	Save(ctx context.Context, tenantID, cashierID string, cart *pricing.Cart) error
	Clear(ctx context.Context, tenantID, cashierID string) error
}

type productLookup interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (catalog.Product, error)
}

type promoResolver interface {
	Resolve(ctx context.Context, orderTotal pricing.Money, qty int) (promo.Result, error)
}

type shiftLookup interface {
	CurrentForCashier(ctx context.Context, tenantID, cashierID string) (*shift.Shift, error)
}

type transactionSaver interface {
	Save(ctx context.Context, t payment.Transaction) (payment.Transaction, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, topic, tenantID string, payload any) (events.Event, error)
}

// Service runs the register: it owns the cashier's cart session and
// orchestrates checkout across promotions, the open shift, transaction
// persistence and event emission.
type Service struct {
	Sessions sessionProvider
	Catalog  productLookup
	Promos   promoResolver
	Shifts   shiftLookup
	Txns     transactionSaver
	Events   eventEmitter
	TaxBps   int
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// session resolves the tenant and authenticated cashier from the
// request context. All cart operations are scoped to this pair.
func (s *Service) session(ctx context.Context) (string, common.Cashier, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return "", common.Cashier{}, common.NewAppError("TENANT_REQUIRED", "tenant tidak dikenal", http.StatusBadRequest, nil)
	}
	cashier, ok := common.CashierFromContext(ctx)
	if !ok || cashier.ID == "" {
		return "", common.Cashier{}, common.NewAppError("UNAUTHORIZED", "sesi kasir tidak ditemukan", http.StatusUnauthorized, nil)
	}
	return tenantID, cashier, nil
}

// Cart returns the cashier's current cart with fresh totals.
func (s *Service) Cart(ctx context.Context) (*pricing.Cart, error) {
	tenantID, cashier, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Sessions.Load(ctx, tenantID, cashier.ID, s.TaxBps)
}

// AddItemInput identifies the product to add, by id or by barcode scan.
type AddItemInput struct {
	ProductID string
	Barcode   string
	Qty       int
}

// AddItem puts a product in the cart at its current catalog price.
// Stock-tracked products are guarded against overselling at add time;
// the authoritative decrement happens when the sale is persisted.
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (*pricing.Cart, error) {
	tenantID, cashier, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if in.Qty <= 0 {
		in.Qty = 1
	}

	var product catalog.Product
	switch {
	case strings.TrimSpace(in.ProductID) != "":
		product, err = s.Catalog.GetProduct(ctx, in.ProductID)
	case strings.TrimSpace(in.Barcode) != "":
		product, err = s.Catalog.GetByBarcode(ctx, in.Barcode)
	default:
		return nil, common.NewAppError("VALIDATION", "produk atau barcode wajib diisi", http.StatusBadRequest, nil)
	}
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, common.NewAppError("PRODUCT_INACTIVE", "produk tidak aktif", http.StatusUnprocessableEntity, nil)
	}

	productID, err := uuid.Parse(product.ID)
	if err != nil {
		return nil, fmt.Errorf("parse product id %q: %w", product.ID, err)
	}

	cart, err := s.Sessions.Load(ctx, tenantID, cashier.ID, s.TaxBps)
	if err != nil {
		return nil, err
	}
	if product.TrackStock {
		inCart := 0
		for _, ln := range cart.Lines {
			if ln.ProductID == productID {
				inCart = ln.Qty
			}
		}
		if product.Stock < inCart+in.Qty {
			return nil, common.NewAppError("OUT_OF_STOCK",
				fmt.Sprintf("stok %s tidak mencukupi", product.Name),
				http.StatusUnprocessableEntity, nil)
		}
	}
	if _, err := cart.AddItem(productID, product.Name, product.SKU, product.UnitPrice, in.Qty); err != nil {
		return nil, wrapCartError(err)
	}
	if err := s.Sessions.Save(ctx, tenantID, cashier.ID, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateQty sets a line's quantity; zero removes the line.
func (s *Service) UpdateQty(ctx context.Context, lineID uuid.UUID, qty int) (*pricing.Cart, error) {
	return s.mutate(ctx, func(cart *pricing.Cart) error {
		if qty < 0 {
			return pricing.ErrInvalidQty
		}
		return cart.UpdateQty(lineID, qty)
	})
}

// SetLineDiscount applies a per-line discount.
func (s *Service) SetLineDiscount(ctx context.Context, lineID uuid.UUID, percentBps int32, amount pricing.Money) (*pricing.Cart, error) {
	return s.mutate(ctx, func(cart *pricing.Cart) error {
		return cart.SetLineDiscount(lineID, percentBps, amount)
	})
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, lineID uuid.UUID) (*pricing.Cart, error) {
	return s.mutate(ctx, func(cart *pricing.Cart) error {
		return cart.RemoveItem(lineID)
	})
}

// ApplyDiscount sets the cart-level discount, replacing any previous one.
func (s *Service) ApplyDiscount(ctx context.Context, d pricing.Discount) (*pricing.Cart, error) {
	return s.mutate(ctx, func(cart *pricing.Cart) error {
		return cart.ApplyDiscount(d)
	})
}

// ApplyBestPromotion resolves the best active promotion for the cart
// and stores it as the cart discount, replacing any previous discount.
func (s *Service) ApplyBestPromotion(ctx context.Context) (*pricing.Cart, error) {
	return s.mutate(ctx, func(cart *pricing.Cart) error {
		if cart.Empty() {
			return payment.EmptyCartError()
		}
		itemCount := 0
		for _, ln := range cart.Lines {
			itemCount += ln.Qty
		}
		result, err := s.Promos.Resolve(ctx, cart.Totals.Subtotal, itemCount)
		if err != nil {
			return err
		}
		if result.Promotion == nil || result.Discount <= 0 {
			msg := "tidak ada promo yang berlaku untuk keranjang ini"
			if result.Reason != "" {
				msg = msg + ": " + result.Reason
			}
			return common.NewAppError("NO_PROMO", msg, http.StatusUnprocessableEntity, nil)
		}
		return cart.ApplyDiscount(pricing.Discount{
			Kind:        pricing.DiscountFixed,
			Amount:      result.Discount,
			Description: result.Promotion.Name,
		})
	})
}

// RemoveDiscount clears the cart-level discount.
func (s *Service) RemoveDiscount(ctx context.Context) (*pricing.Cart, error) {
	return s.mutate(ctx, func(cart *pricing.Cart) error {
		cart.RemoveDiscount()
		return nil
	})
}

// ClearCart drops the cashier's cart session entirely.
func (s *Service) ClearCart(ctx context.Context) error {
	tenantID, cashier, err := s.session(ctx)
	if err != nil {
		return err
	}
	return s.Sessions.Clear(ctx, tenantID, cashier.ID)
}

func (s *Service) mutate(ctx context.Context, fn func(cart *pricing.Cart) error) (*pricing.Cart, error) {
	tenantID, cashier, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	cart, err := s.Sessions.Load(ctx, tenantID, cashier.ID, s.TaxBps)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, wrapCartError(err)
	}
	if err := s.Sessions.Save(ctx, tenantID, cashier.ID, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Checkout settles the cart against the cashier's open shift. The best
// active promotion is applied automatically unless the cashier already
// set a manual cart discount. On success the cart session is cleared
// and a completion event is emitted; on any failure the cart is left
// untouched.
func (s *Service) Checkout(ctx context.Context, payments []payment.Payment) (payment.Transaction, error) {
	tenantID, cashier, err := s.session(ctx)
	if err != nil {
		return payment.Transaction{}, err
	}

	cart, err := s.Sessions.Load(ctx, tenantID, cashier.ID, s.TaxBps)
	if err != nil {
		return payment.Transaction{}, err
	}
	if cart.Empty() {
		return payment.Transaction{}, s.fail(payment.EmptyCartError())
	}

	sh, err := s.Shifts.CurrentForCashier(ctx, tenantID, cashier.ID)
	if err != nil {
		return payment.Transaction{}, s.fail(err)
	}

	promoName := ""
	if cart.Discount == nil && s.Promos != nil {
		itemCount := 0
		for _, ln := range cart.Lines {
			itemCount += ln.Qty
		}
		result, err := s.Promos.Resolve(ctx, cart.Totals.Subtotal, itemCount)
		if err != nil {
			// Promotions are best effort: a resolver outage must not
			// block the sale.
			s.Logger.Warn().Err(err).Msg("promo resolve failed, continuing without promotion")
		} else if result.Promotion != nil && result.Discount > 0 {
			_ = cart.ApplyDiscount(pricing.Discount{
				Kind:        pricing.DiscountFixed,
				Amount:      result.Discount,
				Description: result.Promotion.Name,
			})
			promoName = result.Promotion.Name
		}
	}

	tx, err := payment.Confirm(cart, payments, sh, s.now())
	if err != nil {
		return payment.Transaction{}, s.fail(err)
	}
	tx.PromoName = promoName

	saved, err := s.Txns.Save(ctx, tx)
	if err != nil {
		return payment.Transaction{}, s.fail(err)
	}

	if err := s.Sessions.Clear(ctx, tenantID, cashier.ID); err != nil {
		s.Logger.Warn().Err(err).Str("order_no", saved.OrderNo).Msg("cart session not cleared after checkout")
	}

	if s.Events != nil {
		payload := map[string]any{
			"transactionId": saved.ID.String(),
			"orderNo":       saved.OrderNo,
			"total":         saved.Totals.Total,
			"shiftId":       saved.ShiftID.String(),
		}
		if _, err := s.Events.Emit(ctx, events.TopicTransactionCompleted, tenantID, payload); err != nil {
			s.Logger.Error().Err(err).Str("order_no", saved.OrderNo).Msg("emit transaction completed failed")
		}
	}

	if obs.TransactionsTotal != nil {
		obs.TransactionsTotal.WithLabelValues(tenderClass(saved.Payments), "sale").Inc()
	}
	if obs.SalesRupiahTotal != nil {
		obs.SalesRupiahTotal.Add(float64(saved.Totals.Total))
	}
	s.Logger.Info().
		Str("order_no", saved.OrderNo).
		Str("cashier_id", cashier.ID).
		Int64("total", int64(saved.Totals.Total)).
		Msg("transaction completed")
	return saved, nil
}

// fail counts a checkout failure by its application error code.
func (s *Service) fail(err error) error {
	if obs.CheckoutFailuresTotal != nil {
		code := "INTERNAL"
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			code = appErr.Code
		}
		obs.CheckoutFailuresTotal.WithLabelValues(code).Inc()
	}
	return err
}

func tenderClass(payments []payment.Payment) string {
	switch len(payments) {
	case 0:
		return "none"
	case 1:
		return string(payments[0].Method)
	default:
		return "split"
	}
}

func wrapCartError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrLineNotFound):
		return common.NewAppError("NOT_FOUND", "item keranjang tidak ditemukan", http.StatusNotFound, err)
	case errors.Is(err, pricing.ErrInvalidQty):
		return common.NewAppError("VALIDATION", "jumlah tidak valid", http.StatusBadRequest, err)
	case errors.Is(err, pricing.ErrInvalidDiscount):
		return common.NewAppError("VALIDATION", "diskon tidak valid", http.StatusBadRequest, err)
	default:
		return err
	}
}
