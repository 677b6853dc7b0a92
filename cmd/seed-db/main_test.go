package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/techstore/internal/domain/voucher"
)

func TestSampleVouchers(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	subtotal := decimal.NewFromInt(20000000)

	got := make(map[string]voucher.Reason)
	for _, v := range sampleVouchers(now) {
		require.NoError(t, v.Validate(), v.Code)
		got[v.Code] = voucher.ReasonOf(voucher.Evaluate(&v, subtotal, now))
	}

	assert.Equal(t, map[string]voucher.Reason{
		"GIAM50K":   "",
		"TECH10":    "",
		"LAPTOP1TR": "",
		"FLASH20":   voucher.ReasonNotYetStarted,
		"TET2024":   voucher.ReasonExpired,
		"VIP200K":   voucher.ReasonInactive,
	}, got)
}
