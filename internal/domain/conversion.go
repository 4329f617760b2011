package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConversionStatus is the lifecycle state of a conversion.
type ConversionStatus string

const (
	ConversionPending   ConversionStatus = "pending"
	ConversionConfirmed ConversionStatus = "confirmed"
	ConversionCancelled ConversionStatus = "cancelled"
	ConversionRefunded  ConversionStatus = "refunded"
)

// ConversionType enumerates the kinds of attributable events.
type ConversionType string

const (
	ConversionSale   ConversionType = "sale"
	ConversionSignup ConversionType = "signup"
	ConversionLead   ConversionType = "lead"
)

// Conversion is one order/signup event attributed (or attributable) to a
// partner. ClickID is nil for unattributed conversions; they are still
// recorded so revenue reporting is never silently dropped.
type Conversion struct {
	ID               uuid.UUID        `json:"id"`
	OrderID          string           `json:"order_id"`
	ClickID          *uuid.UUID       `json:"click_id,omitempty"`
	PartnerID        *uuid.UUID       `json:"partner_id,omitempty"`
	ReferralCode     string           `json:"referral_code,omitempty"`
	ProductID        *string          `json:"product_id,omitempty"`
	CategoryID       *string          `json:"category_id,omitempty"`
	Type             ConversionType   `json:"conversion_type"`
	Status           ConversionStatus `json:"status"`
	GrossAmount      decimal.Decimal  `json:"gross_amount"`
	RefundedAmount   decimal.Decimal  `json:"refunded_amount"`
	Quantity         int              `json:"quantity"`
	RefundedQuantity int              `json:"refunded_quantity"`
	Currency         string           `json:"currency"`
	IsNewCustomer    bool             `json:"is_new_customer"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Attributed reports whether the conversion is bound to a click.
func (c *Conversion) Attributed() bool { return c.ClickID != nil }

// ResidualAmount is the gross amount minus refunds, never below zero.
func (c *Conversion) ResidualAmount() decimal.Decimal {
	residual := c.GrossAmount.Sub(c.RefundedAmount)
	if residual.IsNegative() {
		return decimal.Zero
	}
	return residual
}

// IsTerminal reports whether no further transitions are legal.
// Refunded is terminal for cancel/confirm but still carries a residual.
func (c *Conversion) IsTerminal() bool {
	return c.Status == ConversionCancelled || c.Status == ConversionRefunded
}
