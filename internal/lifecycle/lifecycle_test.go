package lifecycle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecomputeForRefund(t *testing.T) {
	t.Run("proportional partial refund", func(t *testing.T) {
		// 10.00 commission on 100.00 gross, 40.00 refunded
		got := recomputeForRefund(dec("10.00"), dec("60.00"), dec("100.00"), "KRW")
		assert.True(t, got.Equal(dec("6")), "got %s", got)
	})

	t.Run("full refund zeroes the commission", func(t *testing.T) {
		got := recomputeForRefund(dec("10.00"), dec("0"), dec("100.00"), "USD")
		assert.True(t, got.IsZero())
	})

	t.Run("rounds half to even at minor unit", func(t *testing.T) {
		// 1.00 × 12.5 ÷ 100 = 0.125 → 0.12 at two decimals
		got := recomputeForRefund(dec("1.00"), dec("12.5"), dec("100.00"), "USD")
		assert.True(t, got.Equal(dec("0.12")), "got %s", got)
	})

	t.Run("zero-decimal currency rounds to whole units", func(t *testing.T) {
		got := recomputeForRefund(dec("10"), dec("55"), dec("100"), "JPY")
		// 5.5 rounds to even 6
		assert.True(t, got.Equal(dec("6")), "got %s", got)
	})

	t.Run("zero gross guards against division", func(t *testing.T) {
		got := recomputeForRefund(dec("10.00"), dec("0"), dec("0"), "USD")
		assert.True(t, got.IsZero())
	})

	t.Run("repeated refunds derive from the original", func(t *testing.T) {
		// two successive refunds land where a single equivalent refund would
		first := recomputeForRefund(dec("10.00"), dec("70.00"), dec("100.00"), "USD")
		second := recomputeForRefund(dec("10.00"), dec("30.00"), dec("100.00"), "USD")
		assert.True(t, first.Equal(dec("7")), "got %s", first)
		assert.True(t, second.Equal(dec("3")), "got %s", second)
	})
}
