package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/partnerlink/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ClickRepository provides access to clicks.
type ClickRepository interface {
	// Insert stores a click with its ingestion-time status.
	Insert(ctx context.Context, db DBTX, click *domain.Click) error

	// FindByID returns a click by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Click, error)

	// List returns a filtered page of clicks plus the unpaged total.
	// Sort keys are restricted to an allow-list.
	List(ctx context.Context, db DBTX, f domain.ClickFilters) ([]domain.Click, int64, error)

	// HasRecentDuplicate reports whether a click with the same referral
	// code and fingerprint exists at or after since.
	HasRecentDuplicate(ctx context.Context, db DBTX, referralCode, fingerprint string, since time.Time) (bool, error)

	// LockDedupKey serializes concurrent inserts for one (referral code,
	// fingerprint) pair until the surrounding transaction ends.
	LockDedupKey(ctx context.Context, db DBTX, referralCode, fingerprint string) error

	// FindCandidates returns valid, unconverted clicks for the referral
	// code created within [windowStart, windowEnd), most recent first.
	// When contextMatch is true, only clicks matching the session id or
	// fingerprint are returned.
	FindCandidates(ctx context.Context, db DBTX, referralCode, sessionID, fingerprint string, windowStart, windowEnd time.Time, contextMatch bool, limit int) ([]domain.Click, error)

	// Claim atomically marks the click converted. Returns false when the
	// click was already claimed by a concurrent binder.
	Claim(ctx context.Context, db DBTX, id uuid.UUID) (bool, error)

	// Stats aggregates click counts for a partner and date range.
	Stats(ctx context.Context, db DBTX, partnerID uuid.UUID, from, to *time.Time) (*domain.ClickStats, error)
}

// ConversionRepository provides access to conversions.
type ConversionRepository interface {
	Insert(ctx context.Context, db DBTX, conv *domain.Conversion) error

	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Conversion, error)

	// FindByOrderID is the attribution idempotency check.
	FindByOrderID(ctx context.Context, db DBTX, orderID string) (*domain.Conversion, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE).
	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Conversion, error)

	// Update persists status, refund fields and attribution binding.
	Update(ctx context.Context, db DBTX, conv *domain.Conversion) error

	List(ctx context.Context, db DBTX, f domain.ConversionFilters) ([]domain.Conversion, int64, error)

	Stats(ctx context.Context, db DBTX, partnerID uuid.UUID, from, to *time.Time) (*domain.ConversionStats, error)
}

// CommissionRepository provides access to commissions and their
// append-only adjustment history.
type CommissionRepository interface {
	Insert(ctx context.Context, db DBTX, comm *domain.Commission) error

	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Commission, error)

	FindByConversionID(ctx context.Context, db DBTX, conversionID uuid.UUID) (*domain.Commission, error)

	LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Commission, error)

	// LockByConversionID locks the commission bound to a conversion, for
	// refund/cancel cascades.
	LockByConversionID(ctx context.Context, tx pgx.Tx, conversionID uuid.UUID) (*domain.Commission, error)

	Update(ctx context.Context, db DBTX, comm *domain.Commission) error

	// AppendAdjustment records one history entry. History is append-only.
	AppendAdjustment(ctx context.Context, db DBTX, adj *domain.Adjustment) error

	ListAdjustments(ctx context.Context, db DBTX, commissionID uuid.UUID) ([]domain.Adjustment, error)

	List(ctx context.Context, db DBTX, f domain.CommissionFilters) ([]domain.Commission, int64, error)

	Stats(ctx context.Context, db DBTX, partnerID uuid.UUID, from, to *time.Time) (*domain.CommissionStats, error)

	// TopPartners ranks partners by confirmed+paid commission total.
	TopPartners(ctx context.Context, db DBTX, from, to *time.Time, limit int) ([]domain.PartnerBreakdown, error)
}

// PolicyRepository provides access to commission policies. Policies are
// never deleted, only deactivated.
type PolicyRepository interface {
	// Upsert creates or replaces a policy by id and returns the stored row.
	Upsert(ctx context.Context, db DBTX, p *domain.CommissionPolicy) (*domain.CommissionPolicy, error)

	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CommissionPolicy, error)

	// FindForConversion returns every policy whose scope could apply to
	// the given (partner, product, category) tuple; the resolver ranks them.
	FindForConversion(ctx context.Context, db DBTX, partnerID *uuid.UUID, productID, categoryID *string) ([]domain.CommissionPolicy, error)

	List(ctx context.Context, db DBTX, f domain.PolicyFilters) ([]domain.CommissionPolicy, int64, error)
}

// PartnerRepository resolves partners for referral codes and scoping.
type PartnerRepository interface {
	Create(ctx context.Context, db DBTX, partner *domain.Partner) error

	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Partner, error)

	FindByReferralCode(ctx context.Context, db DBTX, code string) (*domain.Partner, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the
	// state change it describes).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns pending events for the poller, oldest first.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error)

	// MarkPublished removes published events.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
