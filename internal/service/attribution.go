package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/infra"
	"github.com/partnerlink/platform/internal/repository"
	"github.com/shopspring/decimal"
)

// candidateBatch bounds the attribution candidate query.
const candidateBatch = 10

// AttributionService turns order events into conversions, binding each
// to the last matching click within the attribution window (last-touch)
// and calculating the commission in the same transaction.
type AttributionService struct {
	pool        *pgxpool.Pool
	clicks      repository.ClickRepository
	conversions repository.ConversionRepository
	partners    repository.PartnerRepository
	outbox      repository.OutboxRepository
	calculator  *CommissionService
	window      time.Duration
	claimTries  int
	logger      *slog.Logger
}

// NewAttributionService creates an AttributionService.
func NewAttributionService(
	pool *pgxpool.Pool,
	clicks repository.ClickRepository,
	conversions repository.ConversionRepository,
	partners repository.PartnerRepository,
	outbox repository.OutboxRepository,
	calculator *CommissionService,
	window time.Duration,
	claimTries int,
	logger *slog.Logger,
) *AttributionService {
	if claimTries < 1 {
		claimTries = 1
	}
	return &AttributionService{
		pool:        pool,
		clicks:      clicks,
		conversions: conversions,
		partners:    partners,
		outbox:      outbox,
		calculator:  calculator,
		window:      window,
		claimTries:  claimTries,
		logger:      logger,
	}
}

// OrderEvent is the inbound conversion event from the order subsystem.
type OrderEvent struct {
	OrderID       string                `json:"order_id"`
	ReferralCode  string                `json:"referral_code,omitempty"`
	SessionID     string                `json:"session_id,omitempty"`
	Fingerprint   string                `json:"fingerprint,omitempty"`
	ProductID     string                `json:"product_id,omitempty"`
	CategoryID    string                `json:"category_id,omitempty"`
	Amount        decimal.Decimal       `json:"amount"`
	Quantity      int                   `json:"quantity"`
	Currency      string                `json:"currency"`
	IsNewCustomer bool                  `json:"is_new_customer"`
	Type          domain.ConversionType `json:"conversion_type"`
}

// AttributionResult is the outcome of processing one order event. A
// nil Commission with a non-empty CommissionError means attribution
// succeeded but policy resolution did not; the conversion is kept
// either way, revenue reporting never drops rows.
type AttributionResult struct {
	Conversion      *domain.Conversion `json:"conversion"`
	Commission      *domain.Commission `json:"commission,omitempty"`
	CommissionError string             `json:"commission_error,omitempty"`
}

// RecordConversion processes one order event: idempotency check by
// order id, last-touch click binding via atomic claim, conversion
// insert, and commission calculation, all in one transaction.
func (s *AttributionService) RecordConversion(ctx context.Context, ev OrderEvent) (*AttributionResult, error) {
	if ev.OrderID == "" {
		return nil, domain.ErrValidation("order id is required")
	}
	if err := domain.ValidatePositiveAmount(ev.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateCurrency(ev.Currency); err != nil {
		return nil, err
	}
	if err := domain.ValidateConversionType(ev.Type); err != nil {
		return nil, err
	}
	if ev.Quantity < 1 {
		ev.Quantity = 1
	}

	var result *AttributionResult
	err := infra.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return domain.ErrInternal("begin tx", err)
		}
		defer tx.Rollback(ctx)

		result, err = s.recordConversionTx(ctx, tx, ev)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AttributionService) recordConversionTx(ctx context.Context, tx pgx.Tx, ev OrderEvent) (*AttributionResult, error) {
	existing, err := s.conversions.FindByOrderID(ctx, tx, ev.OrderID)
	if err != nil {
		return nil, domain.ErrInternal("find conversion", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyProcessed("conversion", existing.ID.String(), string(existing.Status))
	}

	now := time.Now()
	conv := &domain.Conversion{
		ID:             uuid.New(),
		OrderID:        ev.OrderID,
		ReferralCode:   ev.ReferralCode,
		Type:           ev.Type,
		Status:         domain.ConversionPending,
		GrossAmount:    domain.RoundMinor(ev.Amount, ev.Currency),
		RefundedAmount: decimal.Zero,
		Quantity:       ev.Quantity,
		Currency:       ev.Currency,
		IsNewCustomer:  ev.IsNewCustomer,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ev.ProductID != "" {
		conv.ProductID = &ev.ProductID
	}
	if ev.CategoryID != "" {
		conv.CategoryID = &ev.CategoryID
	}

	if ev.ReferralCode != "" {
		claimed, err := s.bindLastTouch(ctx, tx, ev, now)
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			conv.ClickID = &claimed.ID
			conv.PartnerID = claimed.PartnerID
		} else {
			// Unattributed: still resolve the partner from the code
			// when possible so partner reporting covers the revenue.
			partner, err := s.partners.FindByReferralCode(ctx, tx, ev.ReferralCode)
			if err != nil {
				return nil, domain.ErrInternal("resolve partner", err)
			}
			if partner != nil {
				conv.PartnerID = &partner.ID
			}
		}
	}

	if err := s.conversions.Insert(ctx, tx, conv); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyProcessed("conversion", ev.OrderID, "concurrent insert")
		}
		return nil, domain.ErrInternal("insert conversion", err)
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewConversionEvent(conv, domain.EventConversionCreated)); err != nil {
		return nil, domain.ErrInternal("insert outbox event", err)
	}

	result := &AttributionResult{Conversion: conv}
	if conv.Attributed() && conv.PartnerID != nil {
		comm, err := s.calculator.Calculate(ctx, tx, conv)
		if err != nil {
			var appErr *domain.AppError
			if errors.As(err, &appErr) && appErr.Code == "NO_APPLICABLE_POLICY" {
				result.CommissionError = appErr.Message
				s.logger.Warn("no applicable policy",
					"conversion_id", conv.ID, "partner_id", conv.PartnerID)
			} else {
				return nil, err
			}
		} else {
			result.Commission = comm
		}
	}

	s.logger.Info("conversion recorded",
		"conversion_id", conv.ID, "order_id", conv.OrderID,
		"attributed", conv.Attributed(), "amount", conv.GrossAmount.String())
	return result, nil
}

// bindLastTouch finds and claims the best candidate click. Session or
// fingerprint matches are preferred; the fallback is the most recent
// valid click for the referral code. A lost claim race moves on to the
// next candidate, bounded by the configured try budget, then falls
// through to unattributed.
func (s *AttributionService) bindLastTouch(ctx context.Context, tx pgx.Tx, ev OrderEvent, at time.Time) (*domain.Click, error) {
	windowStart := at.Add(-s.window)

	var candidates []domain.Click
	if ev.SessionID != "" || ev.Fingerprint != "" {
		matched, err := s.clicks.FindCandidates(ctx, tx,
			ev.ReferralCode, ev.SessionID, ev.Fingerprint, windowStart, at, true, candidateBatch)
		if err != nil {
			return nil, domain.ErrInternal("find candidate clicks", err)
		}
		candidates = matched
	}
	if len(candidates) == 0 {
		unmatched, err := s.clicks.FindCandidates(ctx, tx,
			ev.ReferralCode, "", "", windowStart, at, false, candidateBatch)
		if err != nil {
			return nil, domain.ErrInternal("find candidate clicks", err)
		}
		candidates = unmatched
	}

	tries := s.claimTries
	for i := range candidates {
		if tries == 0 {
			break
		}
		tries--
		ok, err := s.clicks.Claim(ctx, tx, candidates[i].ID)
		if err != nil {
			return nil, domain.ErrInternal("claim click", err)
		}
		if ok {
			return &candidates[i], nil
		}
		s.logger.Debug("claim race lost", "click_id", candidates[i].ID, "order_id", ev.OrderID)
	}
	return nil, nil
}

// Attribute manually binds a conversion to an explicit click and
// calculates the commission when none exists yet.
func (s *AttributionService) Attribute(ctx context.Context, conversionID, clickID uuid.UUID) (*AttributionResult, error) {
	var result *AttributionResult
	err := infra.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return domain.ErrInternal("begin tx", err)
		}
		defer tx.Rollback(ctx)

		conv, err := s.conversions.LockForUpdate(ctx, tx, conversionID)
		if err != nil {
			return domain.ErrInternal("lock conversion", err)
		}
		if conv == nil {
			return domain.ErrNotFound("conversion", conversionID.String())
		}
		if conv.Status != domain.ConversionPending {
			return domain.ErrAlreadyProcessed("conversion", conversionID.String(), string(conv.Status))
		}
		if conv.Attributed() {
			return domain.ErrConflict("conversion is already attributed")
		}

		click, err := s.clicks.FindByID(ctx, tx, clickID)
		if err != nil {
			return domain.ErrInternal("find click", err)
		}
		if click == nil {
			return domain.ErrNotFound("click", clickID.String())
		}
		if !click.Attributable() {
			return domain.ErrValidation("click is not attributable (status " +
				string(click.Status) + ", converted " + boolStr(click.HasConverted) + ")")
		}

		ok, err := s.clicks.Claim(ctx, tx, clickID)
		if err != nil {
			return domain.ErrInternal("claim click", err)
		}
		if !ok {
			return domain.ErrConcurrencyConflict("click was claimed concurrently")
		}

		conv.ClickID = &clickID
		conv.PartnerID = click.PartnerID
		if err := s.conversions.Update(ctx, tx, conv); err != nil {
			return domain.ErrInternal("update conversion", err)
		}

		result = &AttributionResult{Conversion: conv}
		if conv.PartnerID != nil {
			comm, err := s.calculator.Calculate(ctx, tx, conv)
			if err != nil {
				var appErr *domain.AppError
				if errors.As(err, &appErr) && appErr.Code == "NO_APPLICABLE_POLICY" {
					result.CommissionError = appErr.Message
				} else {
					return err
				}
			} else {
				result.Commission = comm
			}
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("conversion attributed manually",
		"conversion_id", conversionID, "click_id", clickID)
	return result, nil
}

// GetConversion returns one conversion within the caller's scope.
func (s *AttributionService) GetConversion(ctx context.Context, scope domain.CallerScope, id uuid.UUID) (*domain.Conversion, error) {
	conv, err := s.conversions.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find conversion", err)
	}
	if conv == nil || !scope.Allows(conv.PartnerID) {
		return nil, domain.ErrNotFound("conversion", id.String())
	}
	return conv, nil
}

// GetConversions returns a filtered page of conversions.
func (s *AttributionService) GetConversions(ctx context.Context, scope domain.CallerScope, f domain.ConversionFilters) (*domain.PagedResult[domain.Conversion], error) {
	if !scope.All {
		f.PartnerID = &scope.PartnerID
	}
	convs, total, err := s.conversions.List(ctx, s.pool, f)
	if err != nil {
		return nil, domain.ErrInternal("list conversions", err)
	}
	_, limit := f.Normalize()
	page := f.Page
	if page < 1 {
		page = 1
	}
	return &domain.PagedResult[domain.Conversion]{Items: convs, Total: total, Page: page, Limit: limit}, nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
