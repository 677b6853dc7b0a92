package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/voucher"
)

const (
	createOrderSQL = `INSERT INTO orders (id, items, subtotal, discount, total, voucher_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderByIDSQL = `SELECT id, items, subtotal, discount, total, voucher_code, created_at
		FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. When the order carries a voucher code the
// voucher row is locked with SELECT ... FOR UPDATE, redeem decides on the
// locked record and the usage counter is incremented in the same
// transaction, so concurrent orders cannot exceed the usage limit.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, redeem order.Redemption) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if o.VoucherCode != "" {
			if err := redeemVoucher(ctx, tx, o.VoucherCode, redeem); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, itemsJSON, o.Subtotal, o.Discount, o.Total, o.VoucherCode, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return nil
	})
}

func redeemVoucher(ctx context.Context, tx pgx.Tx, code string, redeem order.Redemption) error {
	rows, err := tx.Query(ctx, lockVoucherByCodeSQL, code)
	if err != nil {
		return fmt.Errorf("locking voucher %q: %w", code, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &voucher.IneligibleError{Code: code, Reason: voucher.ReasonCodeNotFound}
		}
		return fmt.Errorf("locking voucher %q: %w", code, err)
	}

	if redeem != nil {
		if err := redeem(&v); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, incrementVoucherUsageSQL, v.Code); err != nil {
		return fmt.Errorf("incrementing voucher %q usage: %w", v.Code, err)
	}
	return nil
}

// GetByID returns a stored order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
	)
	err := r.pool.QueryRow(ctx, getOrderByIDSQL, id).Scan(
		&o.ID, &itemsJSON, &o.Subtotal, &o.Discount, &o.Total, &o.VoucherCode, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order %q items: %w", id, err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}
