package voucher

import "github.com/shopspring/decimal"

// ComputeDiscount returns the discount v grants on subtotal. The caller must
// have confirmed eligibility with Evaluate first.
//
// The result is never negative and is rounded to 2 decimal places. It is not
// clamped to the subtotal; use FinalTotal to derive the payable amount.
func ComputeDiscount(v *Voucher, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal

	switch v.DiscountType {
	case DiscountFixed:
		amount = v.DiscountValue
	case DiscountPercentage:
		amount = subtotal.Mul(v.DiscountValue).Div(hundred)
		if v.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, v.MaxDiscount)
		}
	default:
		return decimal.Zero
	}

	return floorAtZero(amount).Round(2)
}

// FinalTotal returns subtotal minus discount, floored at zero.
func FinalTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	return floorAtZero(subtotal.Sub(discount)).Round(2)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
