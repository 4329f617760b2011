package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/numeric"
)

type commissionRepo struct{}

// NewCommissionRepository returns a pgx-backed CommissionRepository.
func NewCommissionRepository() CommissionRepository {
	return &commissionRepo{}
}

const commissionColumns = `id, conversion_id, partner_id, policy_id, calculated_amount,
	       current_amount, currency, status, notes, payment_method, payment_reference,
	       paid_at, created_at, updated_at`

var commissionSortColumns = map[string]string{
	"created_at":     "created_at",
	"status":         "status",
	"current_amount": "current_amount",
}

func (r *commissionRepo) Insert(ctx context.Context, db DBTX, comm *domain.Commission) error {
	_, err := db.Exec(ctx, `
		INSERT INTO commissions
		  (id, conversion_id, partner_id, policy_id, calculated_amount, current_amount,
		   currency, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		comm.ID, comm.ConversionID, comm.PartnerID, comm.PolicyID,
		numeric.DecimalToNumeric(comm.CalculatedAmount), numeric.DecimalToNumeric(comm.CurrentAmount),
		comm.Currency, string(comm.Status), comm.Notes, comm.CreatedAt, comm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}
	return nil
}

func (r *commissionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Commission, error) {
	row := db.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = $1`, id)
	return scanCommission(row)
}

func (r *commissionRepo) FindByConversionID(ctx context.Context, db DBTX, conversionID uuid.UUID) (*domain.Commission, error) {
	row := db.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE conversion_id = $1`, conversionID)
	return scanCommission(row)
}

func (r *commissionRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Commission, error) {
	row := tx.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE id = $1 FOR UPDATE`, id)
	return scanCommission(row)
}

func (r *commissionRepo) LockByConversionID(ctx context.Context, tx pgx.Tx, conversionID uuid.UUID) (*domain.Commission, error) {
	row := tx.QueryRow(ctx, `SELECT `+commissionColumns+` FROM commissions WHERE conversion_id = $1 FOR UPDATE`, conversionID)
	return scanCommission(row)
}

func (r *commissionRepo) Update(ctx context.Context, db DBTX, comm *domain.Commission) error {
	_, err := db.Exec(ctx, `
		UPDATE commissions
		SET current_amount = $2, status = $3, notes = $4, payment_method = $5,
		    payment_reference = $6, paid_at = $7, updated_at = now()
		WHERE id = $1`,
		comm.ID, numeric.DecimalToNumeric(comm.CurrentAmount), string(comm.Status),
		comm.Notes, comm.PaymentMethod, comm.PaymentReference, comm.PaidAt)
	if err != nil {
		return fmt.Errorf("update commission: %w", err)
	}
	return nil
}

func (r *commissionRepo) AppendAdjustment(ctx context.Context, db DBTX, adj *domain.Adjustment) error {
	err := db.QueryRow(ctx, `
		INSERT INTO commission_adjustments
		  (commission_id, previous_amount, new_amount, reason, actor)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		adj.CommissionID, numeric.DecimalToNumeric(adj.PreviousAmount),
		numeric.DecimalToNumeric(adj.NewAmount), adj.Reason, adj.Actor).
		Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return fmt.Errorf("append adjustment: %w", err)
	}
	return nil
}

func (r *commissionRepo) ListAdjustments(ctx context.Context, db DBTX, commissionID uuid.UUID) ([]domain.Adjustment, error) {
	rows, err := db.Query(ctx, `
		SELECT id, commission_id, previous_amount, new_amount, reason, actor, created_at
		FROM commission_adjustments
		WHERE commission_id = $1
		ORDER BY id ASC`, commissionID)
	if err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	defer rows.Close()

	var adjs []domain.Adjustment
	for rows.Next() {
		var a domain.Adjustment
		var prevNum, newNum pgtype.Numeric
		if err := rows.Scan(&a.ID, &a.CommissionID, &prevNum, &newNum, &a.Reason, &a.Actor, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		if a.PreviousAmount, err = numeric.NumericToDecimal(prevNum); err != nil {
			return nil, err
		}
		if a.NewAmount, err = numeric.NumericToDecimal(newNum); err != nil {
			return nil, err
		}
		adjs = append(adjs, a)
	}
	return adjs, rows.Err()
}

func (r *commissionRepo) List(ctx context.Context, db DBTX, f domain.CommissionFilters) ([]domain.Commission, int64, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if f.PartnerID != nil {
		args = append(args, *f.PartnerID)
		where = append(where, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.MinAmount != nil {
		args = append(args, numeric.DecimalToNumeric(*f.MinAmount))
		where = append(where, fmt.Sprintf("current_amount >= $%d", len(args)))
	}
	if f.MaxAmount != nil {
		args = append(args, numeric.DecimalToNumeric(*f.MaxAmount))
		where = append(where, fmt.Sprintf("current_amount <= $%d", len(args)))
	}

	offset, limit := f.Normalize()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM commissions
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		commissionColumns, strings.Join(where, " AND "),
		orderClause(commissionSortColumns, f.SortBy, f.SortOrder),
		len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query commissions: %w", err)
	}
	defer rows.Close()

	var comms []domain.Commission
	var total int64
	for rows.Next() {
		var c domain.Commission
		var calcNum, currNum pgtype.Numeric
		if err := rows.Scan(
			&c.ID, &c.ConversionID, &c.PartnerID, &c.PolicyID, &calcNum, &currNum,
			&c.Currency, &c.Status, &c.Notes, &c.PaymentMethod, &c.PaymentReference,
			&c.PaidAt, &c.CreatedAt, &c.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan commission row: %w", err)
		}
		if c.CalculatedAmount, err = numeric.NumericToDecimal(calcNum); err != nil {
			return nil, 0, err
		}
		if c.CurrentAmount, err = numeric.NumericToDecimal(currNum); err != nil {
			return nil, 0, err
		}
		comms = append(comms, c)
	}
	return comms, total, rows.Err()
}

func (r *commissionRepo) Stats(ctx context.Context, db DBTX, partnerID uuid.UUID, from, to *time.Time) (*domain.CommissionStats, error) {
	where := "partner_id = $1"
	args := []interface{}{partnerID}
	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	var s domain.CommissionStats
	var pendingNum, confirmedNum, paidNum pgtype.Numeric
	err := db.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'confirmed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COUNT(*) FILTER (WHERE status = 'paid'),
		       COALESCE(SUM(current_amount) FILTER (WHERE status = 'pending'), 0),
		       COALESCE(SUM(current_amount) FILTER (WHERE status = 'confirmed'), 0),
		       COALESCE(SUM(current_amount) FILTER (WHERE status = 'paid'), 0)
		FROM commissions WHERE %s`, where), args...).
		Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Cancelled, &s.Paid,
			&pendingNum, &confirmedNum, &paidNum)
	if err != nil {
		return nil, fmt.Errorf("commission stats: %w", err)
	}
	if s.PendingAmount, err = numeric.NumericToDecimal(pendingNum); err != nil {
		return nil, err
	}
	if s.ConfirmedAmount, err = numeric.NumericToDecimal(confirmedNum); err != nil {
		return nil, err
	}
	if s.PaidAmount, err = numeric.NumericToDecimal(paidNum); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *commissionRepo) TopPartners(ctx context.Context, db DBTX, from, to *time.Time, limit int) ([]domain.PartnerBreakdown, error) {
	where := "c.status IN ('confirmed', 'paid')"
	args := []interface{}{}
	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND c.created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND c.created_at < $%d", len(args))
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	args = append(args, limit)

	rows, err := db.Query(ctx, fmt.Sprintf(`
		SELECT c.partner_id, p.name, COUNT(*), COALESCE(SUM(c.current_amount), 0)
		FROM commissions c
		JOIN partners p ON p.id = c.partner_id
		WHERE %s
		GROUP BY c.partner_id, p.name
		ORDER BY SUM(c.current_amount) DESC
		LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("query top partners: %w", err)
	}
	defer rows.Close()

	var out []domain.PartnerBreakdown
	for rows.Next() {
		var b domain.PartnerBreakdown
		var totalNum pgtype.Numeric
		if err := rows.Scan(&b.PartnerID, &b.PartnerName, &b.CommissionCount, &totalNum); err != nil {
			return nil, fmt.Errorf("scan partner breakdown: %w", err)
		}
		if b.ConfirmedTotal, err = numeric.NumericToDecimal(totalNum); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanCommission(row pgx.Row) (*domain.Commission, error) {
	var c domain.Commission
	var calcNum, currNum pgtype.Numeric
	err := row.Scan(
		&c.ID, &c.ConversionID, &c.PartnerID, &c.PolicyID, &calcNum, &currNum,
		&c.Currency, &c.Status, &c.Notes, &c.PaymentMethod, &c.PaymentReference,
		&c.PaidAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan commission: %w", err)
	}

	var convErr error
	if c.CalculatedAmount, convErr = numeric.NumericToDecimal(calcNum); convErr != nil {
		return nil, fmt.Errorf("convert calculated_amount: %w", convErr)
	}
	if c.CurrentAmount, convErr = numeric.NumericToDecimal(currNum); convErr != nil {
		return nil, fmt.Errorf("convert current_amount: %w", convErr)
	}
	return &c, nil
}
