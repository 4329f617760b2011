package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/repository"
)

// PolicyService manages commission policies. Policies are upserted by
// id and deactivated rather than deleted.
type PolicyService struct {
	pool     *pgxpool.Pool
	policies repository.PolicyRepository
	outbox   repository.OutboxRepository
	logger   *slog.Logger
}

// NewPolicyService creates a PolicyService.
func NewPolicyService(pool *pgxpool.Pool, policies repository.PolicyRepository, outbox repository.OutboxRepository, logger *slog.Logger) *PolicyService {
	return &PolicyService{pool: pool, policies: policies, outbox: outbox, logger: logger}
}

// Upsert validates and stores a policy, emitting a policy change event
// in the same transaction.
func (s *PolicyService) Upsert(ctx context.Context, p *domain.CommissionPolicy) (*domain.CommissionPolicy, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal("begin tx", err)
	}
	defer tx.Rollback(ctx)

	stored, err := s.policies.Upsert(ctx, tx, p)
	if err != nil {
		return nil, domain.ErrInternal("upsert policy", err)
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewPolicyUpsertedEvent(stored)); err != nil {
		return nil, domain.ErrInternal("insert outbox event", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.ErrInternal("commit tx", err)
	}

	s.logger.Info("policy upserted",
		"policy_id", stored.ID, "policy_type", stored.PolicyType, "priority", stored.Priority)
	return stored, nil
}

// Get returns one policy by id.
func (s *PolicyService) Get(ctx context.Context, id uuid.UUID) (*domain.CommissionPolicy, error) {
	p, err := s.policies.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find policy", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound("policy", id.String())
	}
	return p, nil
}

// List returns a filtered page of policies.
func (s *PolicyService) List(ctx context.Context, f domain.PolicyFilters) (*domain.PagedResult[domain.CommissionPolicy], error) {
	policies, total, err := s.policies.List(ctx, s.pool, f)
	if err != nil {
		return nil, domain.ErrInternal("list policies", err)
	}
	_, limit := f.Normalize()
	page := f.Page
	if page < 1 {
		page = 1
	}
	return &domain.PagedResult[domain.CommissionPolicy]{Items: policies, Total: total, Page: page, Limit: limit}, nil
}
