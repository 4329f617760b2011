package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PolicyType scopes a commission policy. Specificity order for
// resolution is product > category > partner > global.
type PolicyType string

const (
	PolicyGlobal   PolicyType = "global"
	PolicyPartner  PolicyType = "partner"
	PolicyProduct  PolicyType = "product"
	PolicyCategory PolicyType = "category"
)

// CommissionType selects how a policy computes the commission amount.
type CommissionType string

const (
	CommissionRate  CommissionType = "rate"
	CommissionFixed CommissionType = "fixed"
)

// CommissionPolicy is a rule that determines a commission amount.
// Policies are upserted by id and deactivated rather than deleted so
// historical recomputation stays faithful.
type CommissionPolicy struct {
	ID             uuid.UUID        `json:"id"`
	PolicyType     PolicyType       `json:"policy_type"`
	PartnerID      *uuid.UUID       `json:"partner_id,omitempty"`
	ProductID      *string          `json:"product_id,omitempty"`
	CategoryID     *string          `json:"category_id,omitempty"`
	CommissionType CommissionType   `json:"commission_type"`
	Rate           *decimal.Decimal `json:"rate,omitempty"`
	FixedAmount    *decimal.Decimal `json:"fixed_amount,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Priority       int              `json:"priority"`
	IsActive       bool             `json:"is_active"`
	ValidFrom      *time.Time       `json:"valid_from,omitempty"`
	ValidTo        *time.Time       `json:"valid_to,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// AppliesAt reports whether the policy is active and its validity
// window contains t. The window is [ValidFrom, ValidTo).
func (p *CommissionPolicy) AppliesAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom != nil && t.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidTo != nil && !t.Before(*p.ValidTo) {
		return false
	}
	return true
}

// Validate checks structural policy invariants before an upsert.
func (p *CommissionPolicy) Validate() error {
	switch p.PolicyType {
	case PolicyGlobal:
	case PolicyPartner:
		if p.PartnerID == nil {
			return ErrValidation("partner policy requires partner_id")
		}
	case PolicyProduct:
		if p.ProductID == nil || *p.ProductID == "" {
			return ErrValidation("product policy requires product_id")
		}
	case PolicyCategory:
		if p.CategoryID == nil || *p.CategoryID == "" {
			return ErrValidation("category policy requires category_id")
		}
	default:
		return ErrValidation("unknown policy type: " + string(p.PolicyType))
	}

	switch p.CommissionType {
	case CommissionRate:
		if p.Rate == nil {
			return ErrValidation("rate policy requires rate")
		}
		if p.Rate.IsNegative() || p.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return ErrValidation("rate must be within [0, 1]")
		}
	case CommissionFixed:
		if p.FixedAmount == nil {
			return ErrValidation("fixed policy requires fixed_amount")
		}
		if p.FixedAmount.IsNegative() {
			return ErrValidation("fixed_amount must not be negative")
		}
		if err := ValidateCurrency(p.Currency); err != nil {
			return err
		}
	default:
		return ErrValidation("unknown commission type: " + string(p.CommissionType))
	}

	if p.ValidFrom != nil && p.ValidTo != nil && !p.ValidFrom.Before(*p.ValidTo) {
		return ErrValidation("valid_from must be before valid_to")
	}
	return nil
}
