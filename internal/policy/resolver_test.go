package policy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratePolicy(t domain.PolicyType, rate string, priority int, createdAt time.Time) domain.CommissionPolicy {
	r := decimal.RequireFromString(rate)
	return domain.CommissionPolicy{
		ID:             uuid.New(),
		PolicyType:     t,
		CommissionType: domain.CommissionRate,
		Rate:           &r,
		Priority:       priority,
		IsActive:       true,
		CreatedAt:      createdAt,
	}
}

func TestResolve_SpecificityBeatsPriority(t *testing.T) {
	now := time.Now()
	global := ratePolicy(domain.PolicyGlobal, "0.50", 100, now)
	product := ratePolicy(domain.PolicyProduct, "0.05", 0, now)

	winner := Resolve([]domain.CommissionPolicy{global, product}, now)
	require.NotNil(t, winner)
	assert.Equal(t, product.ID, winner.ID)
}

func TestResolve_SpecificityOrder(t *testing.T) {
	now := time.Now()
	global := ratePolicy(domain.PolicyGlobal, "0.01", 0, now)
	partner := ratePolicy(domain.PolicyPartner, "0.02", 0, now)
	category := ratePolicy(domain.PolicyCategory, "0.03", 0, now)
	product := ratePolicy(domain.PolicyProduct, "0.04", 0, now)

	winner := Resolve([]domain.CommissionPolicy{global, partner, category, product}, now)
	require.NotNil(t, winner)
	assert.Equal(t, domain.PolicyProduct, winner.PolicyType)

	winner = Resolve([]domain.CommissionPolicy{global, partner, category}, now)
	require.NotNil(t, winner)
	assert.Equal(t, domain.PolicyCategory, winner.PolicyType)

	winner = Resolve([]domain.CommissionPolicy{global, partner}, now)
	require.NotNil(t, winner)
	assert.Equal(t, domain.PolicyPartner, winner.PolicyType)
}

func TestResolve_PriorityWithinTier(t *testing.T) {
	now := time.Now()
	low := ratePolicy(domain.PolicyPartner, "0.01", 1, now)
	high := ratePolicy(domain.PolicyPartner, "0.02", 9, now)

	winner := Resolve([]domain.CommissionPolicy{low, high}, now)
	require.NotNil(t, winner)
	assert.Equal(t, high.ID, winner.ID)
}

func TestResolve_RecencyBreaksPriorityTie(t *testing.T) {
	now := time.Now()
	older := ratePolicy(domain.PolicyGlobal, "0.01", 5, now.Add(-time.Hour))
	newer := ratePolicy(domain.PolicyGlobal, "0.02", 5, now)

	winner := Resolve([]domain.CommissionPolicy{older, newer}, now)
	require.NotNil(t, winner)
	assert.Equal(t, newer.ID, winner.ID)
}

func TestResolve_ValidityWindow(t *testing.T) {
	now := time.Now()
	expired := ratePolicy(domain.PolicyGlobal, "0.10", 0, now)
	end := now.Add(-time.Minute)
	expired.ValidTo = &end

	assert.Nil(t, Resolve([]domain.CommissionPolicy{expired}, now))

	// window end is exclusive
	boundary := ratePolicy(domain.PolicyGlobal, "0.10", 0, now)
	boundary.ValidTo = &now
	assert.Nil(t, Resolve([]domain.CommissionPolicy{boundary}, now))
}

func TestResolve_InactiveSkipped(t *testing.T) {
	now := time.Now()
	p := ratePolicy(domain.PolicyGlobal, "0.10", 0, now)
	p.IsActive = false

	assert.Nil(t, Resolve([]domain.CommissionPolicy{p}, now))
}

func TestResolve_Empty(t *testing.T) {
	assert.Nil(t, Resolve(nil, time.Now()))
}

func TestCompute_RateRoundsAtMinorUnit(t *testing.T) {
	p := ratePolicy(domain.PolicyGlobal, "0.10", 0, time.Now())

	c := Compute(&p, decimal.RequireFromString("100.00"), "KRW")
	assert.True(t, c.Amount.Equal(decimal.NewFromInt(10)), "got %s", c.Amount)
	assert.Equal(t, "KRW", c.Currency)
	assert.False(t, c.Clamped)

	c = Compute(&p, decimal.RequireFromString("33.33"), "USD")
	// 3.333 rounds to 3.33 at two decimal places
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("3.33")), "got %s", c.Amount)
}

func TestCompute_HalfToEven(t *testing.T) {
	p := ratePolicy(domain.PolicyGlobal, "0.5", 0, time.Now())

	// 0.125 / 0.135 both sit exactly on the half: round to even cent
	c := Compute(&p, decimal.RequireFromString("0.25"), "USD")
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("0.12")), "got %s", c.Amount)

	c = Compute(&p, decimal.RequireFromString("0.27"), "USD")
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("0.14")), "got %s", c.Amount)
}

func TestCompute_FixedUsesPolicyCurrency(t *testing.T) {
	fixed := decimal.RequireFromString("5.00")
	p := domain.CommissionPolicy{
		ID:             uuid.New(),
		PolicyType:     domain.PolicyPartner,
		CommissionType: domain.CommissionFixed,
		FixedAmount:    &fixed,
		Currency:       "USD",
		IsActive:       true,
	}

	c := Compute(&p, decimal.RequireFromString("100.00"), "USD")
	assert.True(t, c.Amount.Equal(fixed))
	assert.Equal(t, "USD", c.Currency)
}

func TestCompute_FixedClampedToGross(t *testing.T) {
	fixed := decimal.RequireFromString("50.00")
	p := domain.CommissionPolicy{
		ID:             uuid.New(),
		PolicyType:     domain.PolicyPartner,
		CommissionType: domain.CommissionFixed,
		FixedAmount:    &fixed,
		Currency:       "USD",
		IsActive:       true,
	}

	c := Compute(&p, decimal.RequireFromString("20.00"), "USD")
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, c.Clamped)
}
