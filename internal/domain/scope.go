package domain

import "github.com/google/uuid"

// CallerScope is the already-resolved visibility of the caller: either
// everything (admin) or a single partner. Query functions take it as an
// explicit parameter instead of re-deriving it from session state.
type CallerScope struct {
	All       bool
	PartnerID uuid.UUID
	Subject   string
}

// AdminScope grants visibility over all partners.
func AdminScope(subject string) CallerScope {
	return CallerScope{All: true, Subject: subject}
}

// PartnerScope restricts visibility to one partner.
func PartnerScope(partnerID uuid.UUID, subject string) CallerScope {
	return CallerScope{PartnerID: partnerID, Subject: subject}
}

// Allows reports whether the scope may see rows owned by partnerID.
// Unowned rows (nil) are admin-only.
func (s CallerScope) Allows(partnerID *uuid.UUID) bool {
	if s.All {
		return true
	}
	return partnerID != nil && *partnerID == s.PartnerID
}
