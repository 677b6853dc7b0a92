package voucher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name       string
		voucher    Voucher
		subtotal   decimal.Decimal
		wantAmount decimal.Decimal
	}{
		{
			name: "percentage capped by max discount",
			voucher: Voucher{
				DiscountType:  DiscountPercentage,
				DiscountValue: d("20"),
				MaxDiscount:   d("100000"),
			},
			subtotal:   d("1000000"),
			wantAmount: d("100000"),
		},
		{
			name: "percentage under the cap",
			voucher: Voucher{
				DiscountType:  DiscountPercentage,
				DiscountValue: d("20"),
				MaxDiscount:   d("100000"),
			},
			subtotal:   d("300000"),
			wantAmount: d("60000"),
		},
		{
			name: "percentage without cap",
			voucher: Voucher{
				DiscountType:  DiscountPercentage,
				DiscountValue: d("15"),
			},
			subtotal:   d("2000000"),
			wantAmount: d("300000"),
		},
		{
			name: "percentage rounds to 2 dp",
			voucher: Voucher{
				DiscountType:  DiscountPercentage,
				DiscountValue: d("33.33"),
			},
			// 10.01 * 33.33 / 100 = 3.336333 -> 3.34
			subtotal:   d("10.01"),
			wantAmount: d("3.34"),
		},
		{
			name: "fixed ignores subtotal",
			voucher: Voucher{
				DiscountType:  DiscountFixed,
				DiscountValue: d("50000"),
			},
			subtotal:   d("1250000"),
			wantAmount: d("50000"),
		},
		{
			name: "fixed larger than subtotal is not clamped",
			voucher: Voucher{
				DiscountType:  DiscountFixed,
				DiscountValue: d("50000"),
			},
			subtotal:   d("10000"),
			wantAmount: d("50000"),
		},
		{
			name: "fixed ignores max discount",
			voucher: Voucher{
				DiscountType:  DiscountFixed,
				DiscountValue: d("50000"),
				MaxDiscount:   d("1000"),
			},
			subtotal:   d("100000"),
			wantAmount: d("50000"),
		},
		{
			name: "negative subtotal never yields negative discount",
			voucher: Voucher{
				DiscountType:  DiscountPercentage,
				DiscountValue: d("10"),
			},
			subtotal:   d("-500"),
			wantAmount: d("0"),
		},
		{
			name: "unknown type yields zero",
			voucher: Voucher{
				DiscountType:  DiscountType("BOGO"),
				DiscountValue: d("10"),
			},
			subtotal:   d("500"),
			wantAmount: d("0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDiscount(&tt.voucher, tt.subtotal)
			assert.True(t, tt.wantAmount.Equal(got),
				"expected amount %s, got %s", tt.wantAmount, got)
		})
	}
}

func TestFinalTotal(t *testing.T) {
	assert.True(t, d("950000").Equal(FinalTotal(d("1000000"), d("50000"))))
	assert.True(t, decimal.Zero.Equal(FinalTotal(d("10000"), d("50000"))))
	assert.True(t, decimal.Zero.Equal(FinalTotal(d("50000"), d("50000"))))
}
