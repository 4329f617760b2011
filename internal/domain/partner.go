package domain

import (
	"time"

	"github.com/google/uuid"
)

// Partner is the referring party commissions are owed to. Partner
// management lives outside this core; this is the minimal reference
// needed to resolve referral codes and scope queries.
type Partner struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ReferralCode string    `json:"referral_code"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
