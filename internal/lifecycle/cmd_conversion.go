package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/shopspring/decimal"
)

// RefundParams carries the operator input for a conversion refund.
// Amount is authoritative; quantity is informational and never enters
// the commission recompute.
type RefundParams struct {
	Amount   decimal.Decimal
	Quantity int
	Reason   string
	Actor    string
}

// ConfirmConversion transitions a conversion pending → confirmed.
func (m *Manager) ConfirmConversion(ctx context.Context, id uuid.UUID) (*domain.Conversion, error) {
	var conv *domain.Conversion
	err := m.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		conv, err = m.lockConversion(ctx, tx, id, domain.ConversionPending)
		if err != nil {
			return err
		}

		conv.Status = domain.ConversionConfirmed
		if err := m.conversions.Update(ctx, tx, conv); err != nil {
			return err
		}
		return m.outbox.Insert(ctx, tx, domain.NewConversionEvent(conv, domain.EventConversionConfirmed))
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("conversion confirmed", "conversion_id", id)
	return conv, nil
}

// CancelConversion transitions a conversion pending → cancelled and
// cancels its commission, when one exists and is still cancellable.
func (m *Manager) CancelConversion(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Conversion, error) {
	if err := domain.ValidateReason(reason); err != nil {
		return nil, err
	}

	var conv *domain.Conversion
	err := m.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		conv, err = m.lockConversion(ctx, tx, id, domain.ConversionPending)
		if err != nil {
			return err
		}

		conv.Status = domain.ConversionCancelled
		if err := m.conversions.Update(ctx, tx, conv); err != nil {
			return err
		}
		if err := m.outbox.Insert(ctx, tx, domain.NewConversionEvent(conv, domain.EventConversionCancelled)); err != nil {
			return err
		}
		return m.cascadeCancelCommission(ctx, tx, conv.ID, reason, actor)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("conversion cancelled", "conversion_id", id, "reason", reason)
	return conv, nil
}

// RefundConversion transitions a conversion confirmed → refunded. The
// refund may be partial; the residual gross amount is original minus
// refunded, clamped at zero. The bound commission is recomputed
// proportionally against the residual, recorded as an adjustment.
func (m *Manager) RefundConversion(ctx context.Context, id uuid.UUID, params RefundParams) (*domain.Conversion, error) {
	if err := domain.ValidatePositiveAmount(params.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateReason(params.Reason); err != nil {
		return nil, err
	}

	var conv *domain.Conversion
	err := m.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		conv, err = m.lockConversion(ctx, tx, id, domain.ConversionConfirmed)
		if err != nil {
			return err
		}
		if params.Amount.GreaterThan(conv.ResidualAmount()) {
			return domain.ErrValidation(fmt.Sprintf(
				"refund amount %s exceeds residual %s", params.Amount, conv.ResidualAmount()))
		}

		conv.RefundedAmount = conv.RefundedAmount.Add(params.Amount)
		conv.RefundedQuantity += params.Quantity
		conv.Status = domain.ConversionRefunded
		if err := m.conversions.Update(ctx, tx, conv); err != nil {
			return err
		}
		if err := m.outbox.Insert(ctx, tx, domain.NewConversionEvent(conv, domain.EventConversionRefunded)); err != nil {
			return err
		}
		return m.cascadeRefundCommission(ctx, tx, conv, params.Actor)
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("conversion refunded",
		"conversion_id", id, "amount", params.Amount.String(), "reason", params.Reason)
	return conv, nil
}

// lockConversion acquires the row lock and checks the source state.
func (m *Manager) lockConversion(ctx context.Context, tx pgx.Tx, id uuid.UUID, want domain.ConversionStatus) (*domain.Conversion, error) {
	conv, err := m.conversions.LockForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock conversion: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound("conversion", id.String())
	}
	if conv.Status != want {
		return nil, domain.ErrAlreadyProcessed("conversion", id.String(), string(conv.Status))
	}
	return conv, nil
}

// cascadeCancelCommission cancels the conversion's commission if one
// exists and is not yet terminal. A paid commission stays paid; the
// discrepancy is logged for the payout reconciliation to pick up.
func (m *Manager) cascadeCancelCommission(ctx context.Context, tx pgx.Tx, conversionID uuid.UUID, reason, actor string) error {
	comm, err := m.commissions.LockByConversionID(ctx, tx, conversionID)
	if err != nil {
		return fmt.Errorf("lock commission: %w", err)
	}
	if comm == nil {
		return nil
	}
	if comm.IsTerminal() {
		m.logger.Warn("cascade skipped terminal commission",
			"commission_id", comm.ID, "status", comm.Status)
		return nil
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
}

// cascadeRefundCommission recomputes the commission proportionally to
// the conversion's residual gross amount.
func (m *Manager) cascadeRefundCommission(ctx context.Context, tx pgx.Tx, conv *domain.Conversion, actor string) error {
	comm, err := m.commissions.LockByConversionID(ctx, tx, conv.ID)
	if err != nil {
		return fmt.Errorf("lock commission: %w", err)
	}
	if comm == nil {
		return nil
	}
	if comm.IsTerminal() {
		m.logger.Warn("cascade skipped terminal commission",
			"commission_id", comm.ID, "status", comm.Status)
		return nil
	}

	newAmount := recomputeForRefund(comm.CalculatedAmount, conv.ResidualAmount(), conv.GrossAmount, comm.Currency)
	if newAmount.Equal(comm.CurrentAmount) {
		return nil
	}

	adj := &domain.Adjustment{
		CommissionID:   comm.ID,
		PreviousAmount: comm.CurrentAmount,
		NewAmount:      newAmount,
		Reason:         "refund",
		Actor:          actor,
	}
	if err := m.commissions.AppendAdjustment(ctx, tx, adj); err != nil {
		return err
	}

	comm.CurrentAmount = newAmount
	comm.UpdatedAt = time.Now()
	if err := m.commissions.Update(ctx, tx, comm); err != nil {
		return err
	}
	return m.outbox.Insert(ctx, tx, domain.NewCommissionEvent(comm, domain.EventCommissionAdjusted))
}
