package voucher

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr[T any](v T) *T {
	return &v
}

// activeVoucher returns an eligible fixed voucher for mutation in tests.
func activeVoucher() Voucher {
	return Voucher{
		Code:          "SALE50",
		Description:   "50.000 off",
		DiscountType:  DiscountFixed,
		DiscountValue: d("50000"),
		MinOrderValue: d("0"),
		EndDate:       fixedNow.Add(24 * time.Hour),
		UsageLimit:    100,
		UsedCount:     0,
		IsActive:      true,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(v *Voucher)
		subtotal      decimal.Decimal
		wantReason    Reason
		wantErr       error
		wantShortfall decimal.Decimal
	}{
		{
			name:     "eligible voucher",
			mutate:   func(*Voucher) {},
			subtotal: d("100000"),
		},
		{
			name: "inactive",
			mutate: func(v *Voucher) {
				v.IsActive = false
			},
			subtotal:   d("100000"),
			wantReason: ReasonInactive,
			wantErr:    ErrInactive,
		},
		{
			name: "inactive wins over every other failure",
			mutate: func(v *Voucher) {
				v.IsActive = false
				v.UsedCount = v.UsageLimit
				v.EndDate = fixedNow.Add(-time.Hour)
				v.MinOrderValue = d("1000000")
			},
			subtotal:   d("1"),
			wantReason: ReasonInactive,
			wantErr:    ErrInactive,
		},
		{
			name: "used count equals usage limit",
			mutate: func(v *Voucher) {
				v.UsedCount = 100
			},
			subtotal:   d("100000"),
			wantReason: ReasonUsageLimitReached,
			wantErr:    ErrUsageLimitReached,
		},
		{
			name: "usage limit checked before expiry",
			mutate: func(v *Voucher) {
				v.UsedCount = 100
				v.EndDate = fixedNow.Add(-time.Hour)
			},
			subtotal:   d("100000"),
			wantReason: ReasonUsageLimitReached,
			wantErr:    ErrUsageLimitReached,
		},
		{
			name: "end date yesterday",
			mutate: func(v *Voucher) {
				v.EndDate = fixedNow.Add(-24 * time.Hour)
			},
			subtotal:   d("100000"),
			wantReason: ReasonExpired,
			wantErr:    ErrExpired,
		},
		{
			name: "expired exactly at end date",
			mutate: func(v *Voucher) {
				v.EndDate = fixedNow
			},
			subtotal:   d("100000"),
			wantReason: ReasonExpired,
			wantErr:    ErrExpired,
		},
		{
			name: "start date in the future",
			mutate: func(v *Voucher) {
				v.StartDate = ptr(fixedNow.Add(time.Hour))
			},
			subtotal:   d("100000"),
			wantReason: ReasonNotYetStarted,
			wantErr:    ErrNotYetStarted,
		},
		{
			name: "start date equal to now is active",
			mutate: func(v *Voucher) {
				v.StartDate = ptr(fixedNow)
			},
			subtotal: d("100000"),
		},
		{
			name: "below minimum reports shortfall",
			mutate: func(v *Voucher) {
				v.MinOrderValue = d("1000000")
			},
			subtotal:      d("500000"),
			wantReason:    ReasonBelowMinimum,
			wantErr:       ErrBelowMinimum,
			wantShortfall: d("500000"),
		},
		{
			name: "subtotal equal to minimum is eligible",
			mutate: func(v *Voucher) {
				v.MinOrderValue = d("1000000")
			},
			subtotal: d("1000000"),
		},
		{
			name: "not started checked before minimum",
			mutate: func(v *Voucher) {
				v.StartDate = ptr(fixedNow.Add(time.Hour))
				v.MinOrderValue = d("1000000")
			},
			subtotal:   d("1"),
			wantReason: ReasonNotYetStarted,
			wantErr:    ErrNotYetStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := activeVoucher()
			tt.mutate(&v)

			err := Evaluate(&v, tt.subtotal, fixedNow)
			if tt.wantReason == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantReason, ReasonOf(err))

			var ie *IneligibleError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, v.Code, ie.Code)
			assert.True(t, tt.wantShortfall.Equal(ie.Shortfall),
				"expected shortfall %s, got %s", tt.wantShortfall, ie.Shortfall)
		})
	}
}

func TestEvaluate_BelowMinimumShortfall(t *testing.T) {
	cases := []struct{ subtotal, min string }{
		{"0", "1"},
		{"99999.99", "100000"},
		{"1", "1000000"},
		{"250000.50", "300000"},
	}
	for _, c := range cases {
		v := activeVoucher()
		v.MinOrderValue = d(c.min)

		err := Evaluate(&v, d(c.subtotal), fixedNow)

		var ie *IneligibleError
		require.ErrorAs(t, err, &ie, "subtotal %s min %s", c.subtotal, c.min)
		assert.Equal(t, ReasonBelowMinimum, ie.Reason)
		assert.True(t, d(c.min).Sub(d(c.subtotal)).Equal(ie.Shortfall))
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	v := activeVoucher()
	v.MinOrderValue = d("200000")

	first := Evaluate(&v, d("100000"), fixedNow)
	second := Evaluate(&v, d("100000"), fixedNow)
	assert.Equal(t, first, second)
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, Reason(""), ReasonOf(nil))
	assert.Equal(t, Reason(""), ReasonOf(errors.New("boom")))
	assert.Equal(t, ReasonExpired, ReasonOf(errors.Wrap(ErrExpired, "apply")))
	assert.Equal(t, ReasonCatalogUnavailable,
		ReasonOf(errors.Wrap(&IneligibleError{Reason: ReasonCatalogUnavailable}, "list")))
}

func TestIneligibleError_Error(t *testing.T) {
	err := &IneligibleError{Code: "SALE50", Reason: ReasonBelowMinimum, Shortfall: d("1500")}
	assert.Equal(t, "voucher SALE50: minimum order value not met: short by 1500", err.Error())

	err = &IneligibleError{Reason: ReasonCatalogUnavailable}
	assert.Equal(t, "voucher catalog unavailable", err.Error())
}

func TestVoucher_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *Voucher)
		wantErr string
	}{
		{name: "valid", mutate: func(*Voucher) {}},
		{name: "empty code", mutate: func(v *Voucher) { v.Code = "" }, wantErr: "code is required"},
		{name: "lowercase code", mutate: func(v *Voucher) { v.Code = "sale50" }, wantErr: "not canonical"},
		{name: "negative value", mutate: func(v *Voucher) { v.DiscountValue = d("-1") }, wantErr: "must not be negative"},
		{
			name: "percentage over 100",
			mutate: func(v *Voucher) {
				v.DiscountType = DiscountPercentage
				v.DiscountValue = d("101")
			},
			wantErr: "between 0 and 100",
		},
		{name: "zero usage limit", mutate: func(v *Voucher) { v.UsageLimit = 0 }, wantErr: "usage limit"},
		{name: "missing end date", mutate: func(v *Voucher) { v.EndDate = time.Time{} }, wantErr: "end date"},
		{
			name:    "start after end",
			mutate:  func(v *Voucher) { v.StartDate = ptr(v.EndDate.Add(time.Hour)) },
			wantErr: "start date",
		},
		{name: "unknown type", mutate: func(v *Voucher) { v.DiscountType = "BOGO" }, wantErr: "unsupported discount type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := activeVoucher()
			tt.mutate(&v)

			err := v.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseDiscountType(t *testing.T) {
	for in, want := range map[string]DiscountType{
		"FIXED":      DiscountFixed,
		"fixed":      DiscountFixed,
		"percentage": DiscountPercentage,
		" Percent ":  DiscountPercentage,
	} {
		got, err := ParseDiscountType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDiscountType("free_lowest")
	require.Error(t, err)
}
