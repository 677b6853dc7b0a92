package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/voucher"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items       []OrderItem
	VoucherCode string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
}

// Service encapsulates order placement business logic.
type Service struct {
	products  product.Repository
	orders    Repository
	publisher Publisher
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	orders Repository,
	publisher Publisher,
) *Service {
	return &Service{
		products:  products,
		orders:    orders,
		publisher: publisher,
		now:       time.Now,
	}
}

// Price fetches the products for items in a single batch, fills in unit
// prices and returns the subtotal.
func (s *Service) Price(ctx context.Context, items []OrderItem) ([]OrderItem, []product.Product, decimal.Decimal, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, nil, decimal.Zero, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}
	if len(ids) == 0 {
		return []OrderItem{}, nil, decimal.Zero, nil
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, decimal.Zero, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	priced := make([]OrderItem, len(items))
	products := make([]product.Product, 0, len(items))
	subtotal := decimal.Zero
	for i, item := range items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, nil, decimal.Zero, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)

		priced[i] = OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: p.Price,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return priced, products, subtotal, nil
}

// PlaceOrder prices the items, re-validates and redeems the voucher against
// the locked voucher record, persists the order and publishes an
// order-placed event.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items, products, subtotal, err := s.Price(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:        uuid.New().String(),
		Items:     items,
		Subtotal:  subtotal.Round(2),
		Discount:  decimal.Zero,
		Total:     subtotal.Round(2),
		CreatedAt: now,
	}

	var redeem Redemption
	if code := voucher.CanonicalCode(req.VoucherCode); code != "" {
		o.VoucherCode = code
		redeem = func(v *voucher.Voucher) error {
			if err := voucher.Evaluate(v, subtotal, now); err != nil {
				return err
			}
			o.Total = voucher.FinalTotal(subtotal, voucher.ComputeDiscount(v, subtotal))
			o.Discount = o.Subtotal.Sub(o.Total)
			return nil
		}
	}

	if err := s.orders.Create(ctx, o, redeem); err != nil {
		if voucher.ReasonOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.publisher.OrderPlaced(ctx, o); err != nil {
		// The order is committed; downstream consumers can reconcile from storage.
		zctx.From(ctx).Warn("Publish order placed event failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	return &PlaceOrderResult{
		Order:    o,
		Products: products,
	}, nil
}

// Get returns a previously placed order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}
