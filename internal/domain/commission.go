package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionStatus is the payout lifecycle state of a commission.
type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionConfirmed CommissionStatus = "confirmed"
	CommissionCancelled CommissionStatus = "cancelled"
	CommissionPaid      CommissionStatus = "paid"
)

// Commission is the money owed to a partner for one conversion. The
// policy id is frozen at calculation time; later policy edits never
// retroactively change an already-calculated commission. CurrentAmount
// only changes through adjustments, each appended to history.
type Commission struct {
	ID               uuid.UUID        `json:"id"`
	ConversionID     uuid.UUID        `json:"conversion_id"`
	PartnerID        uuid.UUID        `json:"partner_id"`
	PolicyID         uuid.UUID        `json:"policy_id"`
	CalculatedAmount decimal.Decimal  `json:"calculated_amount"`
	CurrentAmount    decimal.Decimal  `json:"current_amount"`
	Currency         string           `json:"currency"`
	Status           CommissionStatus `json:"status"`
	Notes            string           `json:"notes,omitempty"`
	PaymentMethod    *string          `json:"payment_method,omitempty"`
	PaymentReference *string          `json:"payment_reference,omitempty"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the commission can no longer change.
func (c *Commission) IsTerminal() bool {
	return c.Status == CommissionCancelled || c.Status == CommissionPaid
}

// Adjustment is one append-only history entry for a commission amount
// change. Direct overwrites of CurrentAmount are forbidden.
type Adjustment struct {
	ID             int64           `json:"id"`
	CommissionID   uuid.UUID       `json:"commission_id"`
	PreviousAmount decimal.Decimal `json:"previous_amount"`
	NewAmount      decimal.Decimal `json:"new_amount"`
	Reason         string          `json:"reason"`
	Actor          string          `json:"actor"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Delta is the signed amount change this entry records.
func (a *Adjustment) Delta() decimal.Decimal {
	return a.NewAmount.Sub(a.PreviousAmount)
}
