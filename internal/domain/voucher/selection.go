package voucher

import (
	"time"

	"github.com/shopspring/decimal"
)

// Application is the result of a successful apply.
type Application struct {
	Voucher  Voucher
	Discount decimal.Decimal
}

// Selection holds the voucher applied to a single checkout, if any.
// The zero value has no voucher applied. A Selection is owned by one checkout
// and is not safe for concurrent use.
type Selection struct {
	applied *Voucher
}

// NewSelection returns a Selection with v already applied, or an empty one
// when v is nil. It is used to restore a checkout from storage.
func NewSelection(v *Voucher) *Selection {
	s := &Selection{}
	if v != nil {
		cp := *v
		s.applied = &cp
	}
	return s
}

// ApplyCode looks up code in catalog (case-insensitively) and applies the
// matching voucher. State is unchanged on failure.
func (s *Selection) ApplyCode(code string, catalog []Voucher, subtotal decimal.Decimal, now time.Time) (Application, error) {
	code = CanonicalCode(code)
	v, ok := Find(catalog, code)
	if !ok {
		return Application{}, &IneligibleError{Code: code, Reason: ReasonCodeNotFound}
	}
	return s.ApplyVoucher(v, subtotal, now)
}

// ApplyVoucher applies a voucher the caller already holds, re-checking its
// eligibility since the caller's copy may be stale.
func (s *Selection) ApplyVoucher(v Voucher, subtotal decimal.Decimal, now time.Time) (Application, error) {
	if err := Evaluate(&v, subtotal, now); err != nil {
		return Application{}, err
	}
	s.applied = &v
	return Application{Voucher: v, Discount: ComputeDiscount(&v, subtotal)}, nil
}

// Remove clears the applied voucher.
func (s *Selection) Remove() {
	s.applied = nil
}

// Revalidate re-runs eligibility for the applied voucher against a changed
// subtotal. When the voucher no longer qualifies it is removed and the
// reason is returned.
func (s *Selection) Revalidate(subtotal decimal.Decimal, now time.Time) error {
	if s.applied == nil {
		return nil
	}
	if err := Evaluate(s.applied, subtotal, now); err != nil {
		s.applied = nil
		return err
	}
	return nil
}

// CurrentDiscount returns the discount of the applied voucher on subtotal,
// or zero when none is applied.
func (s *Selection) CurrentDiscount(subtotal decimal.Decimal) decimal.Decimal {
	if s.applied == nil {
		return decimal.Zero
	}
	return ComputeDiscount(s.applied, subtotal)
}

// Applied returns the applied voucher.
func (s *Selection) Applied() (Voucher, bool) {
	if s.applied == nil {
		return Voucher{}, false
	}
	return *s.applied, true
}

// Find returns the catalog entry with the given canonical code.
func Find(catalog []Voucher, code string) (Voucher, bool) {
	for _, v := range catalog {
		if CanonicalCode(v.Code) == code {
			return v, true
		}
	}
	return Voucher{}, false
}
