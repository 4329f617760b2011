package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/policy"
	"github.com/partnerlink/platform/internal/repository"
)

// CommissionService calculates commissions and serves commission
// queries. Calculation is invoked by the attribution resolver inside
// its transaction, and directly for manual attribution.
type CommissionService struct {
	pool        *pgxpool.Pool
	commissions repository.CommissionRepository
	policies    repository.PolicyRepository
	outbox      repository.OutboxRepository
	logger      *slog.Logger
}

// NewCommissionService creates a CommissionService.
func NewCommissionService(
	pool *pgxpool.Pool,
	commissions repository.CommissionRepository,
	policies repository.PolicyRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
) *CommissionService {
	return &CommissionService{
		pool:        pool,
		commissions: commissions,
		policies:    policies,
		outbox:      outbox,
		logger:      logger,
	}
}

// Calculate resolves the applicable policy for an attributed conversion
// and creates its commission, within the caller's transaction. At most
// one commission exists per conversion: concurrent calls race on the
// conversion_id unique index and the loser returns the existing row.
func (s *CommissionService) Calculate(ctx context.Context, db repository.DBTX, conv *domain.Conversion) (*domain.Commission, error) {
	if conv.PartnerID == nil {
		return nil, domain.ErrValidation("conversion is not attributed")
	}

	candidates, err := s.policies.FindForConversion(ctx, db, conv.PartnerID, conv.ProductID, conv.CategoryID)
	if err != nil {
		return nil, domain.ErrInternal("find policies", err)
	}
	winner := policy.Resolve(candidates, conv.CreatedAt)
	if winner == nil {
		return nil, domain.ErrNoApplicablePolicy(conv.ID.String())
	}

	comp := policy.Compute(winner, conv.GrossAmount, conv.Currency)
	now := time.Now()
	comm := &domain.Commission{
		ID:               uuid.New(),
		ConversionID:     conv.ID,
		PartnerID:        *conv.PartnerID,
		PolicyID:         winner.ID,
		CalculatedAmount: comp.Amount,
		CurrentAmount:    comp.Amount,
		Currency:         comp.Currency,
		Status:           domain.CommissionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if comp.Clamped {
		comm.Notes = fmt.Sprintf("amount clamped to gross %s %s", conv.GrossAmount, conv.Currency)
		s.logger.Warn("commission clamped to gross",
			"conversion_id", conv.ID, "policy_id", winner.ID, "amount", comp.Amount.String())
	}

	if err := s.commissions.Insert(ctx, db, comm); err != nil {
		if isUniqueViolation(err) {
			existing, ferr := s.commissions.FindByConversionID(ctx, db, conv.ID)
			if ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, domain.ErrInternal("insert commission", err)
	}
	if err := s.outbox.Insert(ctx, db, domain.NewCommissionEvent(comm, domain.EventCommissionCreated)); err != nil {
		return nil, domain.ErrInternal("insert outbox event", err)
	}

	s.logger.Info("commission calculated",
		"commission_id", comm.ID, "conversion_id", conv.ID,
		"policy_id", winner.ID, "amount", comm.CurrentAmount.String(), "currency", comm.Currency)
	return comm, nil
}

// GetCommission returns one commission within the caller's scope.
func (s *CommissionService) GetCommission(ctx context.Context, scope domain.CallerScope, id uuid.UUID) (*domain.Commission, error) {
	comm, err := s.commissions.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find commission", err)
	}
	if comm == nil || !scope.Allows(&comm.PartnerID) {
		return nil, domain.ErrNotFound("commission", id.String())
	}
	return comm, nil
}

// GetCommissions returns a filtered page of commissions.
func (s *CommissionService) GetCommissions(ctx context.Context, scope domain.CallerScope, f domain.CommissionFilters) (*domain.PagedResult[domain.Commission], error) {
	if !scope.All {
		f.PartnerID = &scope.PartnerID
	}
	comms, total, err := s.commissions.List(ctx, s.pool, f)
	if err != nil {
		return nil, domain.ErrInternal("list commissions", err)
	}
	_, limit := f.Normalize()
	page := f.Page
	if page < 1 {
		page = 1
	}
	return &domain.PagedResult[domain.Commission]{Items: comms, Total: total, Page: page, Limit: limit}, nil
}

// GetAdjustments returns a commission's full adjustment history.
func (s *CommissionService) GetAdjustments(ctx context.Context, scope domain.CallerScope, commissionID uuid.UUID) ([]domain.Adjustment, error) {
	if _, err := s.GetCommission(ctx, scope, commissionID); err != nil {
		return nil, err
	}
	adjs, err := s.commissions.ListAdjustments(ctx, s.pool, commissionID)
	if err != nil {
		return nil, domain.ErrInternal("list adjustments", err)
	}
	return adjs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
