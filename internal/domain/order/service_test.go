package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/techstore/internal/domain/product"
	"github.com/xenking/techstore/internal/domain/voucher"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// mockOrderRepo simulates the locking transaction: redeem runs against the
// stored voucher and UsedCount is bumped only when it succeeds.
type mockOrderRepo struct {
	vouchers  map[string]*voucher.Voucher
	lastOrder *Order
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order, redeem Redemption) error {
	if m.err != nil {
		return m.err
	}
	if o.VoucherCode != "" {
		v, ok := m.vouchers[o.VoucherCode]
		if !ok {
			return &voucher.IneligibleError{Code: o.VoucherCode, Reason: voucher.ReasonCodeNotFound}
		}
		if err := redeem(v); err != nil {
			return err
		}
		v.UsedCount++
	}
	m.lastOrder = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	if m.lastOrder != nil && m.lastOrder.ID == id {
		return m.lastOrder, nil
	}
	return nil, ErrNotFound
}

type mockPublisher struct {
	published []*Order
	err       error
}

func (m *mockPublisher) OrderPlaced(_ context.Context, o *Order) error {
	m.published = append(m.published, o)
	return m.err
}

// --- Helpers ---

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestProduct(id, name string, price decimal.Decimal) product.Product {
	return product.Product{
		ID:       id,
		Name:     name,
		Brand:    "TechStore",
		Category: "test",
		Price:    price,
		ImageURL: "/images/" + id + ".jpg",
	}
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

func newTestService(products *mockProductRepo, orders *mockOrderRepo, pub *mockPublisher) *Service {
	svc := NewService(products, orders, pub)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func testVouchers() map[string]*voucher.Voucher {
	return map[string]*voucher.Voucher{
		"SALE50": {
			Code:          "SALE50",
			DiscountType:  voucher.DiscountFixed,
			DiscountValue: dec("50000"),
			EndDate:       fixedNow.Add(24 * time.Hour),
			UsageLimit:    10,
			IsActive:      true,
		},
		"HUGE": {
			Code:          "HUGE",
			DiscountType:  voucher.DiscountFixed,
			DiscountValue: dec("5000000"),
			EndDate:       fixedNow.Add(24 * time.Hour),
			UsageLimit:    10,
			IsActive:      true,
		},
		"BIG20": {
			Code:          "BIG20",
			DiscountType:  voucher.DiscountPercentage,
			DiscountValue: dec("20"),
			MaxDiscount:   dec("100000"),
			MinOrderValue: dec("1000000"),
			EndDate:       fixedNow.Add(24 * time.Hour),
			UsageLimit:    10,
			IsActive:      true,
		},
		"USEDUP": {
			Code:          "USEDUP",
			DiscountType:  voucher.DiscountFixed,
			DiscountValue: dec("10000"),
			EndDate:       fixedNow.Add(24 * time.Hour),
			UsageLimit:    3,
			UsedCount:     3,
			IsActive:      true,
		},
	}
}

// --- Tests ---

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := newTestService(newProductRepo(), &mockOrderRepo{}, &mockPublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.NewFromInt(10))
	svc := newTestService(newProductRepo(p1), &mockOrderRepo{}, &mockPublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderItem{{ProductID: "p1", Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	svc := newTestService(newProductRepo(), &mockOrderRepo{}, &mockPublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderItem{{ProductID: "missing", Quantity: 1}},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestPlaceOrder_ProductLookupError(t *testing.T) {
	repo := newProductRepo()
	repo.getErr = errors.New("db down")
	svc := newTestService(repo, &mockOrderRepo{}, &mockPublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderItem{{ProductID: "p1", Quantity: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get products")
}

func TestPlaceOrder_NoVoucher(t *testing.T) {
	p1 := newTestProduct("p1", "Phone", dec("300000"))
	p2 := newTestProduct("p2", "Case", dec("150000"))
	orders := &mockOrderRepo{}
	pub := &mockPublisher{}
	svc := newTestService(newProductRepo(p1, p2), orders, pub)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	})

	require.NoError(t, err)
	assert.True(t, dec("750000").Equal(result.Order.Subtotal))
	assert.True(t, dec("750000").Equal(result.Order.Total))
	assert.True(t, result.Order.Discount.IsZero())
	assert.Empty(t, result.Order.VoucherCode)
	assert.Equal(t, fixedNow, result.Order.CreatedAt)
	assert.True(t, dec("300000").Equal(result.Order.Items[0].UnitPrice))
	assert.Len(t, result.Products, 2)
	assert.Same(t, result.Order, orders.lastOrder)
	assert.Len(t, pub.published, 1)
}

func TestPlaceOrder_WithVoucher(t *testing.T) {
	p1 := newTestProduct("p1", "Phone", dec("600000"))
	orders := &mockOrderRepo{vouchers: testVouchers()}
	svc := newTestService(newProductRepo(p1), orders, &mockPublisher{})

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items:       []OrderItem{{ProductID: "p1", Quantity: 2}},
		VoucherCode: "big20",
	})

	require.NoError(t, err)
	assert.Equal(t, "BIG20", result.Order.VoucherCode)
	assert.True(t, dec("1200000").Equal(result.Order.Subtotal))
	assert.True(t, dec("100000").Equal(result.Order.Discount))
	assert.True(t, dec("1100000").Equal(result.Order.Total))
	assert.Equal(t, 1, orders.vouchers["BIG20"].UsedCount)
}

func TestPlaceOrder_DiscountClampedToSubtotal(t *testing.T) {
	p1 := newTestProduct("p1", "Cable", dec("100000"))
	orders := &mockOrderRepo{vouchers: testVouchers()}
	svc := newTestService(newProductRepo(p1), orders, &mockPublisher{})

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items:       []OrderItem{{ProductID: "p1", Quantity: 1}},
		VoucherCode: "HUGE",
	})

	require.NoError(t, err)
	assert.True(t, result.Order.Total.IsZero())
	assert.True(t, dec("100000").Equal(result.Order.Discount))
}

func TestPlaceOrder_VoucherRejected(t *testing.T) {
	p1 := newTestProduct("p1", "Phone", dec("300000"))

	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{name: "unknown code", code: "NOPE123", wantErr: voucher.ErrCodeNotFound},
		{name: "below minimum", code: "BIG20", wantErr: voucher.ErrBelowMinimum},
		{name: "usage limit", code: "USEDUP", wantErr: voucher.ErrUsageLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrderRepo{vouchers: testVouchers()}
			pub := &mockPublisher{}
			svc := newTestService(newProductRepo(p1), orders, pub)

			_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				Items:       []OrderItem{{ProductID: "p1", Quantity: 1}},
				VoucherCode: tt.code,
			})

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, orders.lastOrder)
			assert.Empty(t, pub.published)
			if v, ok := orders.vouchers[tt.code]; ok {
				assert.Equal(t, testVouchers()[tt.code].UsedCount, v.UsedCount)
			}
		})
	}
}

func TestPlaceOrder_OrderCreateError(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.NewFromInt(10))
	svc := newTestService(newProductRepo(p1), &mockOrderRepo{err: errors.New("db write failed")}, &mockPublisher{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderItem{{ProductID: "p1", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestPlaceOrder_PublishErrorDoesNotFailOrder(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.NewFromInt(10))
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	svc := newTestService(newProductRepo(p1), &mockOrderRepo{}, pub)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderItem{{ProductID: "p1", Quantity: 1}},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Order.ID)
}

func TestGet(t *testing.T) {
	p1 := newTestProduct("p1", "Widget", decimal.NewFromInt(10))
	svc := newTestService(newProductRepo(p1), &mockOrderRepo{}, &mockPublisher{})

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items: []OrderItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Order.ID, got.ID)

	_, err = svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
