package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/infra"
	"github.com/partnerlink/platform/internal/repository"
	"github.com/shopspring/decimal"
)

// Manager drives the conversion and commission state machines. Every
// command follows the same shape:
//  1. SELECT ... FOR UPDATE — per-entity serialization
//  2. check the source state (ALREADY_PROCESSED when it doesn't match)
//  3. mutate, appending an adjustment entry for any amount change
//  4. insert the outbox event
//
// all within one transaction, retried on transient storage conflicts.
type Manager struct {
	pool        *pgxpool.Pool
	conversions repository.ConversionRepository
	commissions repository.CommissionRepository
	outbox      repository.OutboxRepository
	logger      *slog.Logger
}

// NewManager creates a lifecycle manager with the given repositories.
func NewManager(
	pool *pgxpool.Pool,
	conversions repository.ConversionRepository,
	commissions repository.CommissionRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		pool:        pool,
		conversions: conversions,
		commissions: commissions,
		outbox:      outbox,
		logger:      logger,
	}
}

// inTx runs fn in a transaction with the bounded retry budget. Safe for
// these commands because every precondition is re-checked under the
// row lock inside fn.
func (m *Manager) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return infra.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := m.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// recomputeForRefund derives the post-refund commission amount. The
// proportion uses the original calculated amount, so repeated partial
// refunds never compound rounding drift.
func recomputeForRefund(calculated, residual, originalGross decimal.Decimal, currency string) decimal.Decimal {
	if !originalGross.IsPositive() {
		return decimal.Zero
	}
	return domain.RoundMinor(calculated.Mul(residual).Div(originalGross), currency)
}
