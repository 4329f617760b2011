package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/guard"
	"github.com/partnerlink/platform/internal/repository"
)

// TrackingService records referral clicks and serves click queries.
// Ingestion never rejects a click for fraud or rate-limit reasons; the
// outcome is recorded as the click's status instead.
type TrackingService struct {
	pool        *pgxpool.Pool
	clicks      repository.ClickRepository
	partners    repository.PartnerRepository
	limiter     *guard.RateLimiter
	dedupWindow time.Duration
	logger      *slog.Logger
}

// NewTrackingService creates a TrackingService.
func NewTrackingService(
	pool *pgxpool.Pool,
	clicks repository.ClickRepository,
	partners repository.PartnerRepository,
	limiter *guard.RateLimiter,
	dedupWindow time.Duration,
	logger *slog.Logger,
) *TrackingService {
	return &TrackingService{
		pool:        pool,
		clicks:      clicks,
		partners:    partners,
		limiter:     limiter,
		dedupWindow: dedupWindow,
		logger:      logger,
	}
}

// RecordClickInput holds the click ingestion fields. UTM fields may come
// from the body or the query string; the handler merges them before
// calling the service.
type RecordClickInput struct {
	ReferralCode string `json:"referral_code"`
	ProductID    string `json:"product_id,omitempty"`
	IPAddress    string `json:"-"`
	UserAgent    string `json:"-"`
	Referer      string `json:"-"`
	SessionID    string `json:"session_id,omitempty"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	Campaign     string `json:"utm_campaign,omitempty"`
	Medium       string `json:"utm_medium,omitempty"`
	Source       string `json:"utm_source,omitempty"`
	ReferralLink string `json:"referral_link,omitempty"`
}

// RecordClick ingests one click. A missing referral code is the only
// rejection; rate-limited and duplicate clicks are stored with their
// status so partner traffic reporting stays complete.
func (s *TrackingService) RecordClick(ctx context.Context, input RecordClickInput) (*domain.Click, error) {
	if err := domain.ValidateReferralCode(input.ReferralCode); err != nil {
		return nil, err
	}

	click := &domain.Click{
		ID:           uuid.New(),
		ReferralCode: input.ReferralCode,
		IPAddress:    input.IPAddress,
		UserAgent:    input.UserAgent,
		Referer:      input.Referer,
		SessionID:    input.SessionID,
		Fingerprint:  input.Fingerprint,
		Campaign:     input.Campaign,
		Medium:       input.Medium,
		Source:       input.Source,
		ReferralLink: input.ReferralLink,
		Status:       domain.ClickValid,
		CreatedAt:    time.Now(),
	}
	if input.ProductID != "" {
		click.ProductID = &input.ProductID
	}

	partner, err := s.partners.FindByReferralCode(ctx, s.pool, input.ReferralCode)
	if err != nil {
		return nil, domain.ErrInternal("resolve partner", err)
	}
	if partner != nil {
		click.PartnerID = &partner.ID
	}

	// Rate limit before the duplicate check so a flood never reaches
	// the database EXISTS query. The limiter keys on source IP and on
	// device fingerprint independently; rotating IPs with a fixed
	// fingerprint still trips the second key.
	if result := s.limiter.Check(ctx, "ip:"+input.IPAddress); !result.Allowed {
		click.Status = domain.ClickInvalid
		click.InvalidReason = result.Reason
	} else if input.Fingerprint != "" {
		if result := s.limiter.Check(ctx, "fp:"+input.Fingerprint); !result.Allowed {
			click.Status = domain.ClickInvalid
			click.InvalidReason = result.Reason
		}
	}

	if click.Status == domain.ClickValid && input.Fingerprint != "" {
		if err := s.storeDeduped(ctx, click); err != nil {
			return nil, err
		}
	} else if err := s.clicks.Insert(ctx, s.pool, click); err != nil {
		return nil, domain.ErrInternal("record click", err)
	}

	s.logger.Info("click recorded",
		"click_id", click.ID, "referral_code", click.ReferralCode, "status", click.Status)
	return click, nil
}

// storeDeduped runs the duplicate check and the insert in one
// transaction, serialized per (referral code, fingerprint) by an
// advisory lock. Two concurrent clicks from the same device can never
// both store as valid.
func (s *TrackingService) storeDeduped(ctx context.Context, click *domain.Click) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := s.clicks.LockDedupKey(ctx, tx, click.ReferralCode, click.Fingerprint); err != nil {
		return domain.ErrInternal("dedup lock", err)
	}

	dup, err := s.clicks.HasRecentDuplicate(ctx, tx,
		click.ReferralCode, click.Fingerprint, click.CreatedAt.Add(-s.dedupWindow))
	if err != nil {
		return domain.ErrInternal("duplicate check", err)
	}
	if dup {
		click.Status = domain.ClickDuplicate
	}

	if err := s.clicks.Insert(ctx, tx, click); err != nil {
		return domain.ErrInternal("record click", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ErrInternal("commit tx", err)
	}
	return nil
}

// GetClick returns one click within the caller's scope.
func (s *TrackingService) GetClick(ctx context.Context, scope domain.CallerScope, id uuid.UUID) (*domain.Click, error) {
	click, err := s.clicks.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find click", err)
	}
	if click == nil || !scope.Allows(click.PartnerID) {
		return nil, domain.ErrNotFound("click", id.String())
	}
	return click, nil
}

// GetClicks returns a filtered page of clicks. Partner-scoped callers
// are pinned to their own partner id regardless of the filter.
func (s *TrackingService) GetClicks(ctx context.Context, scope domain.CallerScope, f domain.ClickFilters) (*domain.PagedResult[domain.Click], error) {
	if !scope.All {
		f.PartnerID = &scope.PartnerID
	}
	clicks, total, err := s.clicks.List(ctx, s.pool, f)
	if err != nil {
		return nil, domain.ErrInternal("list clicks", err)
	}
	_, limit := f.Normalize()
	page := f.Page
	if page < 1 {
		page = 1
	}
	return &domain.PagedResult[domain.Click]{Items: clicks, Total: total, Page: page, Limit: limit}, nil
}

// GetClickStats aggregates click counts for a partner and date range.
func (s *TrackingService) GetClickStats(ctx context.Context, scope domain.CallerScope, partnerID uuid.UUID, from, to *time.Time) (*domain.ClickStats, error) {
	if !scope.All {
		partnerID = scope.PartnerID
	}
	stats, err := s.clicks.Stats(ctx, s.pool, partnerID, from, to)
	if err != nil {
		return nil, domain.ErrInternal("click stats", err)
	}
	return stats, nil
}
