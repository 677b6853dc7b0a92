package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/voucher"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Order represents a placed customer order with pricing and discount details.
type Order struct {
	ID       string
	Items    []OrderItem
	Subtotal decimal.Decimal
	// Discount is the amount actually taken off, never more than Subtotal.
	Discount    decimal.Decimal
	Total       decimal.Decimal
	VoucherCode string
	CreatedAt   time.Time
}

// OrderItem represents a single line item in an order.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Redemption runs while the order's voucher is locked for update. Returning
// an error aborts the order and leaves the voucher usage untouched.
type Redemption func(v *voucher.Voucher) error

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists o. When o.VoucherCode is set the voucher is locked,
	// redeem is called with it and its usage counter is incremented, all in
	// one transaction.
	Create(ctx context.Context, o *Order, redeem Redemption) error
	GetByID(ctx context.Context, id string) (*Order, error)
}

// Publisher announces placed orders to downstream consumers.
type Publisher interface {
	OrderPlaced(ctx context.Context, o *Order) error
}
