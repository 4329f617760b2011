package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClickStatus classifies a recorded referral click.
type ClickStatus string

const (
	ClickValid     ClickStatus = "valid"
	ClickInvalid   ClickStatus = "invalid"
	ClickDuplicate ClickStatus = "duplicate"
	ClickExpired   ClickStatus = "expired"
)

// Click is one observed referral visit. Status and HasConverted are
// monotonic: once invalid/duplicate a click is never reclassified valid,
// and once converted the link to its conversion is permanent.
type Click struct {
	ID            uuid.UUID   `json:"id"`
	PartnerID     *uuid.UUID  `json:"partner_id,omitempty"`
	ReferralCode  string      `json:"referral_code"`
	ProductID     *string     `json:"product_id,omitempty"`
	IPAddress     string      `json:"ip_address,omitempty"`
	UserAgent     string      `json:"user_agent,omitempty"`
	Referer       string      `json:"referer,omitempty"`
	SessionID     string      `json:"session_id,omitempty"`
	Fingerprint   string      `json:"fingerprint,omitempty"`
	Campaign      string      `json:"campaign,omitempty"`
	Medium        string      `json:"medium,omitempty"`
	Source        string      `json:"source,omitempty"`
	ReferralLink  string      `json:"referral_link,omitempty"`
	Status        ClickStatus `json:"status"`
	InvalidReason string      `json:"invalid_reason,omitempty"`
	HasConverted  bool        `json:"has_converted"`
	CreatedAt     time.Time   `json:"created_at"`
}

// IsValid reports whether the click counts toward partner traffic.
func (c *Click) IsValid() bool { return c.Status == ClickValid }

// Attributable reports whether the click may still be bound to a conversion.
func (c *Click) Attributable() bool { return c.Status == ClickValid && !c.HasConverted }
