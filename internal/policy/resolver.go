package policy

import (
	"sort"
	"time"

	"github.com/partnerlink/platform/internal/domain"
	"github.com/shopspring/decimal"
)

// specificity ranks policy scopes; higher wins. A product-scoped rule
// beats a category rule for the same conversion regardless of priority.
var specificity = map[domain.PolicyType]int{
	domain.PolicyProduct:  4,
	domain.PolicyCategory: 3,
	domain.PolicyPartner:  2,
	domain.PolicyGlobal:   1,
}

// Resolve picks the winning policy among candidates for a conversion
// occurring at the given instant. Candidates are assumed scope-matched
// already (the repository only fetches applicable scopes); this ranks
// them by specificity, then priority, then recency, with the id as a
// stable final tie-break. Returns nil when no candidate applies at t.
func Resolve(candidates []domain.CommissionPolicy, at time.Time) *domain.CommissionPolicy {
	applicable := candidates[:0:0]
	for _, p := range candidates {
		if p.AppliesAt(at) {
			applicable = append(applicable, p)
		}
	}
	if len(applicable) == 0 {
		return nil
	}

	sort.Slice(applicable, func(i, j int) bool {
		a, b := &applicable[i], &applicable[j]
		if sa, sb := specificity[a.PolicyType], specificity[b.PolicyType]; sa != sb {
			return sa > sb
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})

	winner := applicable[0]
	return &winner
}

// Computation is the result of applying a policy to a conversion amount.
type Computation struct {
	Amount   decimal.Decimal
	Currency string
	Clamped  bool
}

// Compute applies the policy to a gross amount. Rate policies pay in
// the conversion currency; fixed policies pay in the policy currency.
// The amount is rounded half-to-even at the currency's minor unit and
// never exceeds the gross amount it derives from.
func Compute(p *domain.CommissionPolicy, gross decimal.Decimal, conversionCurrency string) Computation {
	switch p.CommissionType {
	case domain.CommissionFixed:
		amount := domain.RoundMinor(*p.FixedAmount, p.Currency)
		c := Computation{Amount: amount, Currency: p.Currency}
		if p.Currency == conversionCurrency && amount.GreaterThan(gross) {
			c.Amount = domain.RoundMinor(gross, p.Currency)
			c.Clamped = true
		}
		return c
	default:
		amount := domain.RoundMinor(gross.Mul(*p.Rate), conversionCurrency)
		c := Computation{Amount: amount, Currency: conversionCurrency}
		if amount.GreaterThan(gross) {
			c.Amount = domain.RoundMinor(gross, conversionCurrency)
			c.Clamped = true
		}
		return c
	}
}
