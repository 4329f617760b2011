package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClickStats aggregates click counts for a partner and date range.
// ConversionRate = converted / valid clicks; zero when no valid clicks.
type ClickStats struct {
	Total          int64   `json:"total"`
	Valid          int64   `json:"valid"`
	Invalid        int64   `json:"invalid"`
	Duplicate      int64   `json:"duplicate"`
	Expired        int64   `json:"expired"`
	Converted      int64   `json:"converted"`
	ConversionRate float64 `json:"conversion_rate"`
}

// ConversionStats aggregates conversion counts and gross revenue.
type ConversionStats struct {
	Total        int64           `json:"total"`
	Pending      int64           `json:"pending"`
	Confirmed    int64           `json:"confirmed"`
	Cancelled    int64           `json:"cancelled"`
	Refunded     int64           `json:"refunded"`
	Unattributed int64           `json:"unattributed"`
	NewCustomers int64           `json:"new_customers"`
	GrossSum     decimal.Decimal `json:"gross_sum"`
	RefundedSum  decimal.Decimal `json:"refunded_sum"`
}

// CommissionStats aggregates commission counts and amounts by status.
type CommissionStats struct {
	Total           int64           `json:"total"`
	Pending         int64           `json:"pending"`
	Confirmed       int64           `json:"confirmed"`
	Cancelled       int64           `json:"cancelled"`
	Paid            int64           `json:"paid"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	ConfirmedAmount decimal.Decimal `json:"confirmed_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
}

// PartnerBreakdown is one row of the top-N partner ranking by confirmed
// commission total.
type PartnerBreakdown struct {
	PartnerID       uuid.UUID       `json:"partner_id"`
	PartnerName     string          `json:"partner_name"`
	CommissionCount int64           `json:"commission_count"`
	ConfirmedTotal  decimal.Decimal `json:"confirmed_total"`
}
