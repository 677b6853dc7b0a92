package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/techstore/internal/domain/voucher"
)

const voucherColumns = `code, description, discount_type, discount_value, max_discount,
	min_order_value, start_date, end_date, usage_limit, used_count, is_active`

const (
	listVouchersSQL = `SELECT ` + voucherColumns + ` FROM vouchers ORDER BY end_date, code`

	getVoucherByCodeSQL = `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = UPPER($1)`

	lockVoucherByCodeSQL = getVoucherByCodeSQL + ` FOR UPDATE`

	createVoucherSQL = `INSERT INTO vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10)`

	updateVoucherSQL = `UPDATE vouchers SET description = $2, discount_type = $3,
		discount_value = $4, max_discount = $5, min_order_value = $6, start_date = $7,
		end_date = $8, usage_limit = $9, is_active = $10, updated_at = NOW()
		WHERE code = $1`

	setVoucherActiveSQL = `UPDATE vouchers SET is_active = $2, updated_at = NOW() WHERE code = UPPER($1)`

	deleteVoucherSQL = `DELETE FROM vouchers WHERE code = UPPER($1)`

	// Imports never lower a usage counter already recorded here.
	upsertVoucherSQL = `INSERT INTO vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			max_discount = EXCLUDED.max_discount, min_order_value = EXCLUDED.min_order_value,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
			usage_limit = EXCLUDED.usage_limit,
			used_count = GREATEST(vouchers.used_count, EXCLUDED.used_count),
			is_active = EXCLUDED.is_active, updated_at = NOW()`

	incrementVoucherUsageSQL = `UPDATE vouchers SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// List returns the whole catalog, soonest expiring first.
func (r *VoucherRepository) List(ctx context.Context) ([]voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, listVouchersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing vouchers: %w", err)
	}
	return pgx.CollectRows(rows, scanVoucher)
}

// FindByCode looks up a voucher case-insensitively. Returns
// voucher.ErrCodeNotFound when no voucher has the code.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, getVoucherByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding voucher %q: %w", code, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding voucher %q: %w", code, err)
	}
	return &v, nil
}

// Create inserts a new voucher with a zero usage counter.
func (r *VoucherRepository) Create(ctx context.Context, v *voucher.Voucher) error {
	_, err := r.pool.Exec(ctx, createVoucherSQL,
		v.Code, v.Description, string(v.DiscountType), v.DiscountValue, v.MaxDiscount,
		v.MinOrderValue, v.StartDate, v.EndDate, v.UsageLimit, v.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return voucher.ErrAlreadyExists
		}
		return fmt.Errorf("creating voucher %q: %w", v.Code, err)
	}
	v.UsedCount = 0
	return nil
}

// Update replaces every field of an existing voucher except its usage
// counter.
func (r *VoucherRepository) Update(ctx context.Context, v *voucher.Voucher) error {
	tag, err := r.pool.Exec(ctx, updateVoucherSQL,
		v.Code, v.Description, string(v.DiscountType), v.DiscountValue, v.MaxDiscount,
		v.MinOrderValue, v.StartDate, v.EndDate, v.UsageLimit, v.IsActive,
	)
	if err != nil {
		return fmt.Errorf("updating voucher %q: %w", v.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrCodeNotFound
	}
	return nil
}

// SetActive flips the administrative kill switch.
func (r *VoucherRepository) SetActive(ctx context.Context, code string, active bool) error {
	tag, err := r.pool.Exec(ctx, setVoucherActiveSQL, code, active)
	if err != nil {
		return fmt.Errorf("setting voucher %q active=%t: %w", code, active, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrCodeNotFound
	}
	return nil
}

// Delete removes a voucher. Orders keep the code they were placed with.
func (r *VoucherRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteVoucherSQL, code)
	if err != nil {
		return fmt.Errorf("deleting voucher %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrCodeNotFound
	}
	return nil
}

// Upsert inserts or refreshes vouchers in one batch and returns how many
// rows were written.
func (r *VoucherRepository) Upsert(ctx context.Context, vs []voucher.Voucher) (int, error) {
	if len(vs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, v := range vs {
		batch.Queue(upsertVoucherSQL,
			v.Code, v.Description, string(v.DiscountType), v.DiscountValue, v.MaxDiscount,
			v.MinOrderValue, v.StartDate, v.EndDate, v.UsageLimit, v.UsedCount, v.IsActive,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for _, v := range vs {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("upserting voucher %q: %w", v.Code, err)
		}
	}
	return len(vs), nil
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		v     voucher.Voucher
		typ   string
		start *time.Time
	)
	err := row.Scan(
		&v.Code, &v.Description, &typ, &v.DiscountValue, &v.MaxDiscount,
		&v.MinOrderValue, &start, &v.EndDate, &v.UsageLimit, &v.UsedCount, &v.IsActive,
	)
	if err != nil {
		return voucher.Voucher{}, err
	}
	v.DiscountType = voucher.DiscountType(typ)
	if start != nil {
		s := start.UTC()
		v.StartDate = &s
	}
	v.EndDate = v.EndDate.UTC()
	return v, nil
}
