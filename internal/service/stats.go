package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/repository"
)

// StatsService serves read-only aggregations. Empty ranges return
// zeroed structures, never errors.
type StatsService struct {
	pool        *pgxpool.Pool
	conversions repository.ConversionRepository
	commissions repository.CommissionRepository
	logger      *slog.Logger
}

// NewStatsService creates a StatsService.
func NewStatsService(
	pool *pgxpool.Pool,
	conversions repository.ConversionRepository,
	commissions repository.CommissionRepository,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{pool: pool, conversions: conversions, commissions: commissions, logger: logger}
}

// ConversionStats aggregates conversions for a partner and date range.
func (s *StatsService) ConversionStats(ctx context.Context, scope domain.CallerScope, partnerID uuid.UUID, from, to *time.Time) (*domain.ConversionStats, error) {
	if !scope.All {
		partnerID = scope.PartnerID
	}
	stats, err := s.conversions.Stats(ctx, s.pool, partnerID, from, to)
	if err != nil {
		return nil, domain.ErrInternal("conversion stats", err)
	}
	return stats, nil
}

// CommissionStats aggregates commissions for a partner and date range.
func (s *StatsService) CommissionStats(ctx context.Context, scope domain.CallerScope, partnerID uuid.UUID, from, to *time.Time) (*domain.CommissionStats, error) {
	if !scope.All {
		partnerID = scope.PartnerID
	}
	stats, err := s.commissions.Stats(ctx, s.pool, partnerID, from, to)
	if err != nil {
		return nil, domain.ErrInternal("commission stats", err)
	}
	return stats, nil
}

// TopPartners ranks partners by confirmed commission total. Admin only;
// the handler enforces the realm before calling.
func (s *StatsService) TopPartners(ctx context.Context, from, to *time.Time, limit int) ([]domain.PartnerBreakdown, error) {
	rows, err := s.commissions.TopPartners(ctx, s.pool, from, to, limit)
	if err != nil {
		return nil, domain.ErrInternal("top partners", err)
	}
	if rows == nil {
		rows = []domain.PartnerBreakdown{}
	}
	return rows, nil
}
