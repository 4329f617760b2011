package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/partnerlink/platform/internal/domain"
	"github.com/partnerlink/platform/internal/numeric"
)

type policyRepo struct{}

// NewPolicyRepository returns a pgx-backed PolicyRepository.
func NewPolicyRepository() PolicyRepository {
	return &policyRepo{}
}

const policyColumns = `id, policy_type, partner_id, product_id, category_id, commission_type,
	       rate, fixed_amount, currency, priority, is_active, valid_from, valid_to,
	       created_at, updated_at`

var policySortColumns = map[string]string{
	"created_at": "created_at",
	"priority":   "priority",
}

func (r *policyRepo) Upsert(ctx context.Context, db DBTX, p *domain.CommissionPolicy) (*domain.CommissionPolicy, error) {
	row := db.QueryRow(ctx, `
		INSERT INTO commission_policies
		  (id, policy_type, partner_id, product_id, category_id, commission_type,
		   rate, fixed_amount, currency, priority, is_active, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
		  policy_type = EXCLUDED.policy_type,
		  partner_id = EXCLUDED.partner_id,
		  product_id = EXCLUDED.product_id,
		  category_id = EXCLUDED.category_id,
		  commission_type = EXCLUDED.commission_type,
		  rate = EXCLUDED.rate,
		  fixed_amount = EXCLUDED.fixed_amount,
		  currency = EXCLUDED.currency,
		  priority = EXCLUDED.priority,
		  is_active = EXCLUDED.is_active,
		  valid_from = EXCLUDED.valid_from,
		  valid_to = EXCLUDED.valid_to,
		  updated_at = now()
		RETURNING `+policyColumns,
		p.ID, string(p.PolicyType), p.PartnerID, p.ProductID, p.CategoryID,
		string(p.CommissionType), numeric.NullableDecimalToNumeric(p.Rate),
		numeric.NullableDecimalToNumeric(p.FixedAmount), nullIfEmpty(p.Currency),
		p.Priority, p.IsActive, p.ValidFrom, p.ValidTo)
	return scanPolicy(row)
}

func (r *policyRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.CommissionPolicy, error) {
	row := db.QueryRow(ctx, `SELECT `+policyColumns+` FROM commission_policies WHERE id = $1`, id)
	return scanPolicy(row)
}

// FindForConversion fetches every policy whose scope could match the
// conversion: the global tier plus any tier whose reference equals the
// conversion's. Activity and validity windows are checked by the
// resolver so the cut-off instant stays in one place.
func (r *policyRepo) FindForConversion(ctx context.Context, db DBTX, partnerID *uuid.UUID, productID, categoryID *string) ([]domain.CommissionPolicy, error) {
	where := []string{"policy_type = 'global'"}
	args := []interface{}{}

	if partnerID != nil {
		args = append(args, *partnerID)
		where = append(where, fmt.Sprintf("(policy_type = 'partner' AND partner_id = $%d)", len(args)))
	}
	if productID != nil && *productID != "" {
		args = append(args, *productID)
		where = append(where, fmt.Sprintf("(policy_type = 'product' AND product_id = $%d)", len(args)))
	}
	if categoryID != nil && *categoryID != "" {
		args = append(args, *categoryID)
		where = append(where, fmt.Sprintf("(policy_type = 'category' AND category_id = $%d)", len(args)))
	}

	rows, err := db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM commission_policies
		WHERE is_active = TRUE AND (%s)`,
		policyColumns, strings.Join(where, " OR ")), args...)
	if err != nil {
		return nil, fmt.Errorf("query applicable policies: %w", err)
	}
	defer rows.Close()

	return collectPolicies(rows)
}

func (r *policyRepo) List(ctx context.Context, db DBTX, f domain.PolicyFilters) ([]domain.CommissionPolicy, int64, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if f.PolicyType != nil {
		args = append(args, string(*f.PolicyType))
		where = append(where, fmt.Sprintf("policy_type = $%d", len(args)))
	}
	if f.PartnerID != nil {
		args = append(args, *f.PartnerID)
		where = append(where, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if f.ProductID != nil {
		args = append(args, *f.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}

	offset, limit := f.Normalize()
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total
		FROM commission_policies
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		policyColumns, strings.Join(where, " AND "),
		orderClause(policySortColumns, f.SortBy, f.SortOrder),
		len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var policies []domain.CommissionPolicy
	var total int64
	for rows.Next() {
		var p domain.CommissionPolicy
		var rateNum, fixedNum pgtype.Numeric
		var currency *string
		if err := rows.Scan(
			&p.ID, &p.PolicyType, &p.PartnerID, &p.ProductID, &p.CategoryID,
			&p.CommissionType, &rateNum, &fixedNum, &currency, &p.Priority,
			&p.IsActive, &p.ValidFrom, &p.ValidTo, &p.CreatedAt, &p.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan policy row: %w", err)
		}
		if err := finishPolicy(&p, rateNum, fixedNum, currency); err != nil {
			return nil, 0, err
		}
		policies = append(policies, p)
	}
	return policies, total, rows.Err()
}

func collectPolicies(rows pgx.Rows) ([]domain.CommissionPolicy, error) {
	var policies []domain.CommissionPolicy
	for rows.Next() {
		var p domain.CommissionPolicy
		var rateNum, fixedNum pgtype.Numeric
		var currency *string
		if err := rows.Scan(
			&p.ID, &p.PolicyType, &p.PartnerID, &p.ProductID, &p.CategoryID,
			&p.CommissionType, &rateNum, &fixedNum, &currency, &p.Priority,
			&p.IsActive, &p.ValidFrom, &p.ValidTo, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		if err := finishPolicy(&p, rateNum, fixedNum, currency); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(row pgx.Row) (*domain.CommissionPolicy, error) {
	var p domain.CommissionPolicy
	var rateNum, fixedNum pgtype.Numeric
	var currency *string
	err := row.Scan(
		&p.ID, &p.PolicyType, &p.PartnerID, &p.ProductID, &p.CategoryID,
		&p.CommissionType, &rateNum, &fixedNum, &currency, &p.Priority,
		&p.IsActive, &p.ValidFrom, &p.ValidTo, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	if err := finishPolicy(&p, rateNum, fixedNum, currency); err != nil {
		return nil, err
	}
	return &p, nil
}

func finishPolicy(p *domain.CommissionPolicy, rateNum, fixedNum pgtype.Numeric, currency *string) error {
	var err error
	if p.Rate, err = numeric.NumericToNullableDecimal(rateNum); err != nil {
		return fmt.Errorf("convert rate: %w", err)
	}
	if p.FixedAmount, err = numeric.NumericToNullableDecimal(fixedNum); err != nil {
		return fmt.Errorf("convert fixed_amount: %w", err)
	}
	if currency != nil {
		p.Currency = *currency
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
