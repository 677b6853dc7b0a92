// Package voucher evaluates discount vouchers against an order subtotal and
// tracks the voucher applied to a checkout.
package voucher

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported voucher discount strategies.
type DiscountType string

const (
	// DiscountFixed subtracts a fixed currency amount.
	DiscountFixed DiscountType = "FIXED"
	// DiscountPercentage subtracts a percentage of the subtotal, optionally
	// capped by MaxDiscount.
	DiscountPercentage DiscountType = "PERCENTAGE"
)

// ParseDiscountType maps the spellings found in catalog payloads onto a
// DiscountType.
func ParseDiscountType(s string) (DiscountType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIXED", "AMOUNT", "FLAT":
		return DiscountFixed, nil
	case "PERCENTAGE", "PERCENT":
		return DiscountPercentage, nil
	default:
		return "", errors.Errorf("unsupported discount type: %q", s)
	}
}

// Voucher is a discount code with eligibility rules and a usage counter.
type Voucher struct {
	Code          string
	Description   string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	// MaxDiscount caps percentage discounts when positive.
	MaxDiscount   decimal.Decimal
	MinOrderValue decimal.Decimal
	StartDate     *time.Time
	EndDate       time.Time
	UsageLimit    int
	UsedCount     int
	IsActive      bool
}

// CanonicalCode returns the lookup form of a user supplied code.
func CanonicalCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var hundred = decimal.NewFromInt(100)

// Validate checks the record invariants required before a voucher is stored.
func (v *Voucher) Validate() error {
	switch {
	case v.Code == "":
		return errors.New("code is required")
	case v.Code != CanonicalCode(v.Code):
		return errors.Errorf("code %q is not canonical", v.Code)
	case v.DiscountValue.IsNegative():
		return errors.New("discount value must not be negative")
	case v.MaxDiscount.IsNegative():
		return errors.New("max discount must not be negative")
	case v.MinOrderValue.IsNegative():
		return errors.New("min order value must not be negative")
	case v.UsageLimit <= 0:
		return errors.New("usage limit must be positive")
	case v.UsedCount < 0:
		return errors.New("used count must not be negative")
	case v.EndDate.IsZero():
		return errors.New("end date is required")
	case v.StartDate != nil && !v.StartDate.Before(v.EndDate):
		return errors.New("start date must be before end date")
	}

	switch v.DiscountType {
	case DiscountFixed:
	case DiscountPercentage:
		if v.DiscountValue.GreaterThan(hundred) {
			return errors.New("percentage must be between 0 and 100")
		}
	default:
		return errors.Errorf("unsupported discount type: %q", v.DiscountType)
	}
	return nil
}

// Catalog supplies the list of known vouchers.
type Catalog interface {
	List(ctx context.Context) ([]Voucher, error)
}

// Repository provides lookup and administration of stored vouchers.
type Repository interface {
	Catalog
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	Create(ctx context.Context, v *Voucher) error
	Update(ctx context.Context, v *Voucher) error
	SetActive(ctx context.Context, code string, active bool) error
	Delete(ctx context.Context, code string) error
}

// ErrAlreadyExists is returned by Repository.Create for a duplicate code.
var ErrAlreadyExists = errors.New("voucher already exists")
