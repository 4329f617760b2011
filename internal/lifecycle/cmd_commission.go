package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/shopspring/decimal"
)

// ConfirmCommission transitions a commission pending → confirmed.
func (m *Manager) ConfirmCommission(ctx context.Context, id uuid.UUID) (*domain.Commission, error) {
	var comm *domain.Commission
	err := m.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		comm, err = m.lockCommission(ctx, tx, id, domain.CommissionPending)
		if err != nil {
			return err
		}

		comm.Status = domain.CommissionConfirmed
		if err := m.commissions.Update(ctx, tx, comm); err != nil {
			return err
		}
		return m.outbox.Insert(ctx, tx, domain.NewCommissionEvent(comm, domain.EventCommissionConfirmed))
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("commission confirmed", "commission_id", id)
	return comm, nil
}

// CancelCommission transitions a pending or confirmed commission to
// cancelled. The reason is mandatory and recorded as an adjustment
// zeroing the current amount.
func (m *Manager) CancelCommission(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Commission, error) {
	if err := domain.ValidateReason(reason); err != nil {
		return nil, err
	}

	var comm *domain.Commission
	err := m.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		comm, err = m.lockCommission(ctx, tx, id, domain.CommissionPending, domain.CommissionConfirmed)
		if err != nil {
			return err
		}

		adj := &domain.Adjustment{
			CommissionID:   comm.ID,
			PreviousAmount: comm.CurrentAmount,
			NewAmount:      decimal.Zero,
			Reason:         reason,
			Actor:          actor,
		}
		if err := m.commissions.AppendAdjustment(ctx, tx, adj); err != nil {
			return err
		}

		comm.CurrentAmount = decimal.Zero
		comm.Status = domain.CommissionCancelled
		if err := m.commissions.Update(ctx, tx, comm); err != nil {
			return err
		}
		return m.outbox.Insert(ctx, tx, domain.NewCommissionEvent(comm, domain.EventCommissionCancelled))
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("commission cancelled", "commission_id", id, "reason", reason)
	return comm, nil
}

// AdjustCommission changes a confirmed commission's current amount,
// appending the change to history. The reason is mandatory.
func (m *Manager) AdjustCommission(ctx context.Context, id uuid.UUID, newAmount decimal.Decimal, reason, actor string) (*domain.Commission, error) {
	if err := domain.ValidateReason(reason); err != nil {
		return nil, err
	}
	if newAmount.IsNegative() {
		return nil, domain.ErrValidation("adjusted amount must not be negative")
	}

	var comm *domain.Commission
	err := m.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		comm, err = m.lockCommission(ctx, tx, id, domain.CommissionConfirmed)
		if err != nil {
			return err
		}

		rounded := domain.RoundMinor(newAmount, comm.Currency)
		if rounded.Equal(comm.CurrentAmount) {
			return domain.ErrValidation("adjusted amount equals current amount")
		}

		adj := &domain.Adjustment{
			CommissionID:   comm.ID,
			PreviousAmount: comm.CurrentAmount,
			NewAmount:      rounded,
			Reason:         reason,
			Actor:          actor,
		}
		if err := m.commissions.AppendAdjustment(ctx, tx, adj); err != nil {
			return err
		}

		comm.CurrentAmount = rounded
		comm.UpdatedAt = time.Now()
		if err := m.commissions.Update(ctx, tx, comm); err != nil {
			return err
		}
		return m.outbox.Insert(ctx, tx, domain.NewCommissionEvent(comm, domain.EventCommissionAdjusted))
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("commission adjusted",
		"commission_id", id, "new_amount", comm.CurrentAmount.String(), "reason", reason)
	return comm, nil
}

// PayCommission transitions a confirmed commission to paid, recording
// the payment method and optional reference.
func (m *Manager) PayCommission(ctx context.Context, id uuid.UUID, method, reference string) (*domain.Commission, error) {
	if strings.TrimSpace(method) == "" {
		return nil, domain.ErrValidation("payment method is required")
	}

	var comm *domain.Commission
	err := m.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		comm, err = m.lockCommission(ctx, tx, id, domain.CommissionConfirmed)
		if err != nil {
			return err
		}

		now := time.Now()
		comm.Status = domain.CommissionPaid
		comm.PaymentMethod = &method
		if reference != "" {
			comm.PaymentReference = &reference
		}
		comm.PaidAt = &now
		if err := m.commissions.Update(ctx, tx, comm); err != nil {
			return err
		}
		return m.outbox.Insert(ctx, tx, domain.NewCommissionEvent(comm, domain.EventCommissionPaid))
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("commission paid", "commission_id", id, "method", method)
	return comm, nil
}

// lockCommission acquires the row lock and checks the source state
// against the accepted set.
func (m *Manager) lockCommission(ctx context.Context, tx pgx.Tx, id uuid.UUID, want ...domain.CommissionStatus) (*domain.Commission, error) {
	comm, err := m.commissions.LockForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock commission: %w", err)
	}
	if comm == nil {
		return nil, domain.ErrNotFound("commission", id.String())
	}
	for _, s := range want {
		if comm.Status == s {
			return comm, nil
		}
	}
	return nil, domain.ErrAlreadyProcessed("commission", id.String(), string(comm.Status))
}
